// Package policy resolves a trade's origin channel to its trading parameters
// and merges per-trade overrides into one effective policy per evaluation.
package policy

import (
	"strings"
	"time"

	"solana-trade-engine/internal/domain"
)

// Policy is the trading configuration bundle for one channel. Immutable; the
// table below is never mutated, callers receive copies.
type Policy struct {
	Priority            string
	AllocationSOL       float64
	StopLossPct         float64
	TakeProfit1Pct      float64
	TakeProfit2Pct      float64
	TrailingStopEnabled bool
	TrailingStopPct     float64
	TimeBasedSell       time.Duration // zero means no time-based exit
	AutoSellEnabled     bool
}

// channelPolicies maps channel-name substrings to policies. Order matters:
// Resolve returns the first match in declaration order.
var channelPolicies = []struct {
	pattern string
	policy  Policy
}{
	{"memecoin-alpha", Policy{
		Priority:            "high",
		AllocationSOL:       0.5,
		StopLossPct:         -25.0,
		TakeProfit1Pct:      100.0,
		TakeProfit2Pct:      200.0,
		TrailingStopEnabled: true,
		TrailingStopPct:     15.0,
		AutoSellEnabled:     true,
	}},
	{"memecoin-chat", Policy{
		Priority:            "low",
		AllocationSOL:       0.1,
		StopLossPct:         -15.0,
		TakeProfit1Pct:      50.0,
		TakeProfit2Pct:      100.0,
		TrailingStopEnabled: true,
		TrailingStopPct:     10.0,
		TimeBasedSell:       30 * time.Minute,
		AutoSellEnabled:     true,
	}},
	{"under-100k", Policy{
		Priority:            "low",
		AllocationSOL:       0.1,
		StopLossPct:         -20.0,
		TakeProfit1Pct:      75.0,
		TakeProfit2Pct:      150.0,
		TrailingStopEnabled: true,
		TrailingStopPct:     12.0,
		TimeBasedSell:       45 * time.Minute,
		AutoSellEnabled:     true,
	}},
}

// Default returns the conservative policy for unknown channels.
func Default() Policy {
	return Policy{
		Priority:            "medium",
		AllocationSOL:       0.25,
		StopLossPct:         -30.0,
		TakeProfit1Pct:      100.0,
		TakeProfit2Pct:      200.0,
		TrailingStopEnabled: false,
		TrailingStopPct:     15.0,
		AutoSellEnabled:     true,
	}
}

// Resolve maps a channel name to its policy by case-insensitive substring
// match, first match wins. Pure: identical input always yields the same
// policy.
func Resolve(channelName string) Policy {
	lower := strings.ToLower(channelName)
	for _, entry := range channelPolicies {
		if strings.Contains(lower, entry.pattern) {
			return entry.policy
		}
	}
	return Default()
}

// Effective is the merged per-evaluation policy: trade-level overrides
// falling back to channel defaults. Built fresh each cycle, never stored.
type Effective struct {
	StopLossPct         float64
	TakeProfit1Pct      float64
	TakeProfit2Pct      float64
	TrailingStopEnabled bool
	TrailingStopPct     float64
	TimeBasedSellAt     *time.Time
	AutoSellEnabled     bool
}

// EffectiveFor merges a trade's overrides over the channel policy.
func EffectiveFor(t *domain.Trade, base Policy) Effective {
	eff := Effective{
		StopLossPct:         base.StopLossPct,
		TakeProfit1Pct:      base.TakeProfit1Pct,
		TakeProfit2Pct:      base.TakeProfit2Pct,
		TrailingStopEnabled: base.TrailingStopEnabled,
		TrailingStopPct:     base.TrailingStopPct,
		TimeBasedSellAt:     t.TimeBasedSellAt,
		AutoSellEnabled:     base.AutoSellEnabled,
	}

	if t.StopLossPct != nil {
		eff.StopLossPct = *t.StopLossPct
	}
	if t.TakeProfit1Pct != nil {
		eff.TakeProfit1Pct = *t.TakeProfit1Pct
	}
	if t.TakeProfit2Pct != nil {
		eff.TakeProfit2Pct = *t.TakeProfit2Pct
	}
	if t.TrailingStopEnabled != nil {
		eff.TrailingStopEnabled = *t.TrailingStopEnabled
	}
	if t.TrailingStopPct != nil {
		eff.TrailingStopPct = *t.TrailingStopPct
	}
	if t.AutoSellEnabled != nil {
		eff.AutoSellEnabled = *t.AutoSellEnabled
	}

	return eff
}
