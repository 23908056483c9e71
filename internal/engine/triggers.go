// Package engine runs the two polling loops: the trade processor, which
// executes queued buys and sells, and the position monitor, which evaluates
// open positions against their exit triggers.
package engine

import (
	"time"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/policy"
)

// Snapshot is one cycle's view of a position, assembled by the monitor.
// HighestPrice is the running high after folding in the current observation.
type Snapshot struct {
	Status       string
	PnLPct       float64
	CurrentPrice float64
	HighestPrice float64
	Policy       policy.Effective
	Now          time.Time
}

// Action is a requested auto-sell: what fraction to liquidate and why.
type Action struct {
	Percentage int
	Reason     string
}

// exitRule pairs a trigger with its predicate. The rules are evaluated
// top-to-bottom with first-match-wins semantics; the exact order is a
// behavioral contract, which is why this is not a scoring function.
type exitRule struct {
	reason string
	eval   func(Snapshot) *Action
}

// Ranked triggers: stop loss dominates trailing stop, which dominates TP1,
// which dominates TP2. The time-based exit is deliberately not in this list.
var exitRules = []exitRule{
	{domain.ReasonStopLoss, evalStopLoss},
	{domain.ReasonTrailingStop, evalTrailingStop},
	{domain.ReasonTakeProfit1, evalTakeProfit1},
	{domain.ReasonTakeProfit2, evalTakeProfit2},
}

// EvaluateExit runs the ranked trigger rules over one position snapshot and
// returns at most one action. The time-based exit is checked independently,
// only when no ranked rule fired.
func EvaluateExit(s Snapshot) *Action {
	for _, rule := range exitRules {
		if action := rule.eval(s); action != nil {
			return action
		}
	}
	return evalTimeBased(s)
}

func evalStopLoss(s Snapshot) *Action {
	if s.PnLPct <= s.Policy.StopLossPct {
		return &Action{Percentage: 100, Reason: domain.ReasonStopLoss}
	}
	return nil
}

// evalTrailingStop fires on the drop from the running high, only while the
// position is in profit.
func evalTrailingStop(s Snapshot) *Action {
	if !s.Policy.TrailingStopEnabled || s.HighestPrice <= 0 || s.PnLPct <= 0 {
		return nil
	}
	dropFromHigh := (s.HighestPrice - s.CurrentPrice) / s.HighestPrice * 100
	if dropFromHigh >= s.Policy.TrailingStopPct {
		return &Action{Percentage: 100, Reason: domain.ReasonTrailingStop}
	}
	return nil
}

// evalTakeProfit1 sells half the position; it only applies before TP1 has
// been taken, i.e. while the trade is still in bought status.
func evalTakeProfit1(s Snapshot) *Action {
	if s.Status == domain.StatusBought && s.PnLPct >= s.Policy.TakeProfit1Pct {
		return &Action{Percentage: 50, Reason: domain.ReasonTakeProfit1}
	}
	return nil
}

// evalTakeProfit2 liquidates the remainder after a partial TP1 exit.
func evalTakeProfit2(s Snapshot) *Action {
	if s.Status == domain.StatusPartialTP1 && s.PnLPct >= s.Policy.TakeProfit2Pct {
		return &Action{Percentage: 100, Reason: domain.ReasonTakeProfit2}
	}
	return nil
}

func evalTimeBased(s Snapshot) *Action {
	if s.Policy.TimeBasedSellAt == nil || s.Now.Before(*s.Policy.TimeBasedSellAt) {
		return nil
	}
	return &Action{Percentage: 100, Reason: domain.ReasonTimeBased}
}
