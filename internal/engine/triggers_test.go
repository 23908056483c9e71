package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/policy"
)

func baseSnapshot() Snapshot {
	return Snapshot{
		Status:       domain.StatusBought,
		PnLPct:       0,
		CurrentPrice: 1.0,
		HighestPrice: 1.0,
		Policy: policy.Effective{
			StopLossPct:         -25.0,
			TakeProfit1Pct:      100.0,
			TakeProfit2Pct:      200.0,
			TrailingStopEnabled: true,
			TrailingStopPct:     15.0,
			AutoSellEnabled:     true,
		},
		Now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateExit_StopLoss(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = -26.0

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonStopLoss, action.Reason)
	assert.Equal(t, 100, action.Percentage)
}

func TestEvaluateExit_StopLossBoundary(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = -25.0 // exactly at threshold fires

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonStopLoss, action.Reason)

	s.PnLPct = -24.9
	assert.Nil(t, EvaluateExit(s))
}

func TestEvaluateExit_TrailingStop(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 20.0
	s.HighestPrice = 2.0
	s.CurrentPrice = 1.6 // 20% off the high

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTrailingStop, action.Reason)
	assert.Equal(t, 100, action.Percentage)
}

func TestEvaluateExit_TrailingStopBoundary(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 20.0
	s.HighestPrice = 2.0
	s.CurrentPrice = 1.7 // exactly 15% off the high fires

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTrailingStop, action.Reason)
}

func TestEvaluateExit_TrailingStopRequiresProfit(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = -10.0 // above stop loss, below entry
	s.HighestPrice = 2.0
	s.CurrentPrice = 0.9 // 55% off the high

	assert.Nil(t, EvaluateExit(s), "trailing stop must not fire on a losing position")
}

func TestEvaluateExit_TrailingStopDisabled(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 20.0
	s.HighestPrice = 2.0
	s.CurrentPrice = 1.0
	s.Policy.TrailingStopEnabled = false

	assert.Nil(t, EvaluateExit(s))
}

func TestEvaluateExit_TakeProfit1(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 100.0
	s.CurrentPrice = 2.0
	s.HighestPrice = 2.0

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTakeProfit1, action.Reason)
	assert.Equal(t, 50, action.Percentage, "first take profit sells half")
}

func TestEvaluateExit_TakeProfit1OnlyWhileBought(t *testing.T) {
	s := baseSnapshot()
	s.Status = domain.StatusPartialTP1
	s.PnLPct = 120.0
	s.CurrentPrice = 2.2
	s.HighestPrice = 2.2

	action := EvaluateExit(s)
	assert.Nil(t, action, "TP1 must not fire twice")
}

func TestEvaluateExit_TakeProfit2(t *testing.T) {
	s := baseSnapshot()
	s.Status = domain.StatusPartialTP1
	s.PnLPct = 210.0
	s.CurrentPrice = 3.1
	s.HighestPrice = 3.1

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTakeProfit2, action.Reason)
	assert.Equal(t, 100, action.Percentage)
}

func TestEvaluateExit_TakeProfit2RequiresPartialTP1(t *testing.T) {
	s := baseSnapshot()
	s.Status = domain.StatusBought
	s.PnLPct = 210.0
	s.CurrentPrice = 3.1
	s.HighestPrice = 3.1

	action := EvaluateExit(s)
	require.NotNil(t, action)
	// At +210% from bought status, TP1 is the applicable trigger.
	assert.Equal(t, domain.ReasonTakeProfit1, action.Reason)
}

func TestEvaluateExit_StopLossDominatesTrailingStop(t *testing.T) {
	// Contrived inputs where both predicates hold: stop loss must win.
	s := baseSnapshot()
	s.PnLPct = -30.0
	s.HighestPrice = 2.0
	s.CurrentPrice = 0.7
	s.Policy.StopLossPct = -25.0

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonStopLoss, action.Reason)
}

func TestEvaluateExit_TrailingStopDominatesTakeProfit(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 110.0 // above TP1
	s.HighestPrice = 4.0
	s.CurrentPrice = 2.1 // 47.5% off the high

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTrailingStop, action.Reason)
}

func TestEvaluateExit_TimeBased(t *testing.T) {
	sellAt := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	s := baseSnapshot()
	s.Policy.TimeBasedSellAt = &sellAt // an hour overdue

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTimeBased, action.Reason)
	assert.Equal(t, 100, action.Percentage)
}

func TestEvaluateExit_TimeBasedExactDeadline(t *testing.T) {
	s := baseSnapshot()
	sellAt := s.Now
	s.Policy.TimeBasedSellAt = &sellAt

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonTimeBased, action.Reason)
}

func TestEvaluateExit_TimeBasedYieldsToRankedRules(t *testing.T) {
	sellAt := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	s := baseSnapshot()
	s.PnLPct = -30.0
	s.Policy.TimeBasedSellAt = &sellAt

	action := EvaluateExit(s)
	require.NotNil(t, action)
	assert.Equal(t, domain.ReasonStopLoss, action.Reason, "a ranked trigger suppresses the time-based exit")
}

func TestEvaluateExit_NoTrigger(t *testing.T) {
	s := baseSnapshot()
	s.PnLPct = 10.0
	s.CurrentPrice = 1.1
	s.HighestPrice = 1.1

	assert.Nil(t, EvaluateExit(s))
}
