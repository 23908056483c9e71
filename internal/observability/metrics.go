// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Execution metrics
	SwapsExecuted        *prometheus.CounterVec
	ConfirmationOutcomes *prometheus.CounterVec

	// Quote metrics
	QuoteRetries prometheus.Counter
	QuoteNoRoute prometheus.Counter

	// Monitor metrics
	AutoSellTriggers *prometheus.CounterVec
	OpenPositions    prometheus.Gauge
	PriceFallbacks   prometheus.Counter

	// Loop metrics
	CycleDuration *prometheus.HistogramVec
	CycleErrors   *prometheus.CounterVec

	// Chain metrics
	RPCFailovers prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_trade_engine"
	}

	return &Metrics{
		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "swaps_total",
			Help:      "Total swap executions by side and status",
		}, []string{"side", "status"}),
		ConfirmationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "confirmations_total",
			Help:      "Transaction confirmation outcomes (confirmed, timeout)",
		}, []string{"outcome"}),

		QuoteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jupiter",
			Name:      "quote_retries_total",
			Help:      "Total quote attempts beyond the first",
		}),
		QuoteNoRoute: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jupiter",
			Name:      "quote_no_route_total",
			Help:      "Total quotes rejected definitively for missing liquidity",
		}),

		AutoSellTriggers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "auto_sell_triggers_total",
			Help:      "Auto-sell requests issued by trigger reason",
		}, []string{"reason"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "open_positions",
			Help:      "Open positions seen in the last monitor cycle",
		}),
		PriceFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "price_fallbacks_total",
			Help:      "Price lookups served by the quote-derived fallback",
		}),

		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Loop cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"}),
		CycleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_errors_total",
			Help:      "Cycle-level failures that triggered a backoff sleep",
		}, []string{"loop"}),

		RPCFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_failovers_total",
			Help:      "Times the active RPC endpoint was re-established",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSwap records a swap execution outcome.
func RecordSwap(side, status string) {
	DefaultMetrics.SwapsExecuted.WithLabelValues(side, status).Inc()
}

// RecordConfirmation records a transaction confirmation outcome.
func RecordConfirmation(outcome string) {
	DefaultMetrics.ConfirmationOutcomes.WithLabelValues(outcome).Inc()
}

// RecordQuoteRetry increments the quote retry counter.
func RecordQuoteRetry() {
	DefaultMetrics.QuoteRetries.Inc()
}

// RecordQuoteNoRoute increments the definitive no-liquidity counter.
func RecordQuoteNoRoute() {
	DefaultMetrics.QuoteNoRoute.Inc()
}

// RecordAutoSell records an auto-sell request by reason.
func RecordAutoSell(reason string) {
	DefaultMetrics.AutoSellTriggers.WithLabelValues(reason).Inc()
}

// UpdateOpenPositions updates the open positions gauge.
func UpdateOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordPriceFallback increments the quote-derived price fallback counter.
func RecordPriceFallback() {
	DefaultMetrics.PriceFallbacks.Inc()
}

// RecordCycle records one loop cycle's duration.
func RecordCycle(loop string, seconds float64) {
	DefaultMetrics.CycleDuration.WithLabelValues(loop).Observe(seconds)
}

// RecordCycleError records a cycle-level failure.
func RecordCycleError(loop string) {
	DefaultMetrics.CycleErrors.WithLabelValues(loop).Inc()
}

// RecordRPCFailover increments the endpoint re-establishment counter.
func RecordRPCFailover() {
	DefaultMetrics.RPCFailovers.Inc()
}
