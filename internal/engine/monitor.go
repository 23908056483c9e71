package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/executor"
	"solana-trade-engine/internal/jupiter"
	"solana-trade-engine/internal/observability"
	"solana-trade-engine/internal/policy"
	"solana-trade-engine/internal/solana"
)

// Monitor default timings. The monitor cycles faster than the processor
// because stale prices are costlier than stale queues for volatile assets.
const (
	DefaultMonitorInterval = 5 * time.Second
	DefaultMonitorBackoff  = 30 * time.Second

	// fallbackTokenDecimals normalizes raw balances in the quote-derived
	// price fallback; the tokens this engine trades are 6-decimal SPL mints.
	fallbackTokenDecimals = 1_000_000
)

// Monitor polls open positions, tracks their price and running high, and
// requests auto-sells when an exit trigger fires. It never executes sells
// itself: the resulting sell request is picked up by the trade processor,
// which keeps a single writer for balance-changing operations.
type Monitor struct {
	api          PositionBook
	prices       PriceSource
	balances     TokenBalances
	wallet       string
	resolve      func(string) policy.Policy
	logger       *log.Logger
	interval     time.Duration
	errorBackoff time.Duration
	now          func() time.Time
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	API           PositionBook
	Prices        PriceSource
	Balances      TokenBalances
	WalletAddress string
	Resolver      func(string) policy.Policy // default policy.Resolve
	Logger        *log.Logger
	Interval      time.Duration    // default 5s
	ErrorBackoff  time.Duration    // default 30s
	Now           func() time.Time // default time.Now
}

// NewMonitor creates a position monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	resolve := opts.Resolver
	if resolve == nil {
		resolve = policy.Resolve
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultMonitorInterval
	}
	backoff := opts.ErrorBackoff
	if backoff == 0 {
		backoff = DefaultMonitorBackoff
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Monitor{
		api:          opts.API,
		prices:       opts.Prices,
		balances:     opts.Balances,
		wallet:       opts.WalletAddress,
		resolve:      resolve,
		logger:       logger,
		interval:     interval,
		errorBackoff: backoff,
		now:          now,
	}
}

// Run polls until the context is cancelled. Per-position failures are logged
// and never abort the cycle for the remaining positions.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Println("position monitor started")

	for {
		start := time.Now()
		err := m.runCycle(ctx)
		observability.RecordCycle("monitor", time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RecordCycleError("monitor")
			m.logger.Printf("cycle failed: %v (backing off %v)", err, m.errorBackoff)
			if !sleep(ctx, m.errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if !sleep(ctx, m.interval) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context) error {
	positions, err := m.api.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("open positions: %w", err)
	}
	observability.UpdateOpenPositions(len(positions))

	for i := range positions {
		if err := m.checkPosition(ctx, &positions[i]); err != nil {
			m.logger.Printf("position %s: %v", positions[i].ID, err)
		}
	}
	return nil
}

// checkPosition evaluates one position against its exit triggers. Transient
// price unavailability skips the position silently: a missing price must
// never cause a false exit.
func (m *Monitor) checkPosition(ctx context.Context, pos *domain.Trade) error {
	if pos.ContractAddress == "" || pos.EntryPrice <= 0 {
		return nil
	}

	eff := policy.EffectiveFor(pos, m.resolve(pos.ChannelName))
	if !eff.AutoSellEnabled {
		return nil
	}

	currentPrice, ok := m.currentPrice(ctx, pos.ContractAddress)
	if !ok {
		return nil
	}

	pnlPct := (currentPrice - pos.EntryPrice) / pos.EntryPrice * 100

	// The running high only moves upward; the first observation seeds it.
	highest := currentPrice
	if pos.HighestPrice != nil && *pos.HighestPrice > highest {
		highest = *pos.HighestPrice
	}

	action := EvaluateExit(Snapshot{
		Status:       pos.Status,
		PnLPct:       pnlPct,
		CurrentPrice: currentPrice,
		HighestPrice: highest,
		Policy:       eff,
		Now:          m.now(),
	})

	// Price and running high are reported whether or not a trigger fired.
	if err := m.api.UpdatePositionPrice(ctx, pos.ID, currentPrice, highest); err != nil {
		m.logger.Printf("update price for %s: %v", pos.ID, err)
	}

	if action == nil {
		return nil
	}

	m.logger.Printf("%s triggered for %s (pnl %.1f%%), selling %d%%",
		action.Reason, shortAddr(pos.ContractAddress), pnlPct, action.Percentage)

	if err := m.api.RequestAutoSell(ctx, pos.ID, action.Percentage, action.Reason); err != nil {
		return fmt.Errorf("request auto-sell: %w", err)
	}
	observability.RecordAutoSell(action.Reason)
	return nil
}

// currentPrice looks up the spot price, falling back to valuing the full held
// balance through a quote when the price index is unavailable.
func (m *Monitor) currentPrice(ctx context.Context, mint string) (float64, bool) {
	price, err := m.prices.PriceInSOL(ctx, mint)
	if err == nil && price > 0 {
		return price, true
	}

	balance, err := m.balances.GetTokenBalance(ctx, m.wallet, mint)
	if err != nil || balance == 0 {
		return 0, false
	}

	quote, err := m.prices.GetQuote(ctx, mint, jupiter.SOLMint, balance, executor.DefaultSlippageBps)
	if err != nil {
		return 0, false
	}

	observability.RecordPriceFallback()
	valueSOL := float64(quote.OutAmount) / solana.LamportsPerSOL
	return valueSOL / (float64(balance) / fallbackTokenDecimals), true
}
