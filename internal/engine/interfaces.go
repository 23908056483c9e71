package engine

import (
	"context"
	"time"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/jupiter"
)

// TradeQueue is the backend surface the trade processor consumes.
type TradeQueue interface {
	PendingTrades(ctx context.Context) ([]domain.Trade, error)
	PendingSells(ctx context.Context) ([]domain.SellRequest, error)
	MarkTradeBought(ctx context.Context, tradeID, signature string, expectedTokens uint64) error
	MarkTradeFailed(ctx context.Context, tradeID, reason string) error
	MarkPartialTP1(ctx context.Context, tradeID string) error
	MarkSellExecuted(ctx context.Context, sellID, txHash string, realizedSOL float64) error
	MarkSellFailed(ctx context.Context, sellID, reason string) error
	Log(ctx context.Context, level, message, details string)
}

// PositionBook is the backend surface the position monitor consumes.
type PositionBook interface {
	OpenPositions(ctx context.Context) ([]domain.Trade, error)
	UpdatePositionPrice(ctx context.Context, tradeID string, currentPrice, highestPrice float64) error
	RequestAutoSell(ctx context.Context, tradeID string, percentage int, reason string) error
}

// SwapExecutor executes buys and sells, reporting outcomes as values.
type SwapExecutor interface {
	Buy(ctx context.Context, contractAddress string, amountSOL float64, slippageBps int) domain.TradeResult
	Sell(ctx context.Context, contractAddress string, percentage, slippageBps int) domain.TradeResult
}

// PriceSource provides spot prices and quotes for fallback valuation.
type PriceSource interface {
	PriceInSOL(ctx context.Context, mint string) (float64, error)
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
}

// TokenBalances reads held token balances for the engine wallet.
type TokenBalances interface {
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)
}

// sleep waits for d or context cancellation; false means cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
