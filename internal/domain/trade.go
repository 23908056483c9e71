package domain

import "time"

// Trade status values. The backend owns these transitions; the engine only
// requests them.
const (
	StatusPending    = "pending"
	StatusBought     = "bought"
	StatusPartialTP1 = "partial_tp1"
	StatusClosed     = "closed"
	StatusFailed     = "failed"
)

// Exit trigger reason codes reported with auto-sell requests.
const (
	ReasonStopLoss     = "stop_loss"
	ReasonTrailingStop = "trailing_stop"
	ReasonTakeProfit1  = "take_profit_1"
	ReasonTakeProfit2  = "take_profit_2"
	ReasonTimeBased    = "time_based"
)

// Trade is a position under management, as served by the backend.
// Pointer fields are per-trade policy overrides; nil falls back to the
// resolved channel policy.
type Trade struct {
	ID              string   `json:"id"`
	ContractAddress string   `json:"contract_address"`
	AllocationSOL   float64  `json:"allocation_sol"`
	Status          string   `json:"status"`
	ChannelName     string   `json:"channel_name"`
	EntryPrice      float64  `json:"entry_price"`
	HighestPrice    *float64 `json:"highest_price"`
	CurrentPrice    float64  `json:"current_price"`

	StopLossPct         *float64   `json:"stop_loss_pct"`
	TakeProfit1Pct      *float64   `json:"take_profit_1_pct"`
	TakeProfit2Pct      *float64   `json:"take_profit_2_pct"`
	TrailingStopEnabled *bool      `json:"trailing_stop_enabled"`
	TrailingStopPct     *float64   `json:"trailing_stop_pct"`
	TimeBasedSellAt     *time.Time `json:"time_based_sell_at"`
	AutoSellEnabled     *bool      `json:"auto_sell_enabled"`
}

// SellRequest is a detached instruction to liquidate part or all of a
// position. Consumed exactly once by the trade processor.
type SellRequest struct {
	ID              string `json:"id"`
	TradeID         string `json:"trade_id"`
	ContractAddress string `json:"contract_address"`
	Percentage      int    `json:"percentage"`
	SlippageBps     int    `json:"slippage_bps"`
}

// TradeResult reports the outcome of a swap execution uniformly for buys and
// sells. Failures are carried as text so both callers can report them to the
// backend without unwrapping error chains.
type TradeResult struct {
	Success      bool
	Signature    string
	Error        string
	OutputAmount uint64 // expected output in base units, from the executed quote
}
