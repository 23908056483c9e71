package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-engine/internal/domain"
)

type boughtReport struct {
	tradeID   string
	signature string
	tokens    uint64
}

type sellReport struct {
	sellID      string
	txHash      string
	realizedSOL float64
}

type fakeQueue struct {
	trades    []domain.Trade
	tradesErr error
	sells     []domain.SellRequest
	sellsErr  error

	bought     []boughtReport
	failed     map[string]string
	partialTP1 []string
	executed   []sellReport
	sellFailed map[string]string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		failed:     make(map[string]string),
		sellFailed: make(map[string]string),
	}
}

func (f *fakeQueue) PendingTrades(ctx context.Context) ([]domain.Trade, error) {
	return f.trades, f.tradesErr
}

func (f *fakeQueue) PendingSells(ctx context.Context) ([]domain.SellRequest, error) {
	return f.sells, f.sellsErr
}

func (f *fakeQueue) MarkTradeBought(ctx context.Context, tradeID, signature string, expectedTokens uint64) error {
	f.bought = append(f.bought, boughtReport{tradeID, signature, expectedTokens})
	return nil
}

func (f *fakeQueue) MarkTradeFailed(ctx context.Context, tradeID, reason string) error {
	f.failed[tradeID] = reason
	return nil
}

func (f *fakeQueue) MarkPartialTP1(ctx context.Context, tradeID string) error {
	f.partialTP1 = append(f.partialTP1, tradeID)
	return nil
}

func (f *fakeQueue) MarkSellExecuted(ctx context.Context, sellID, txHash string, realizedSOL float64) error {
	f.executed = append(f.executed, sellReport{sellID, txHash, realizedSOL})
	return nil
}

func (f *fakeQueue) MarkSellFailed(ctx context.Context, sellID, reason string) error {
	f.sellFailed[sellID] = reason
	return nil
}

func (f *fakeQueue) Log(ctx context.Context, level, message, details string) {}

type buyCall struct {
	contract string
	amount   float64
	slippage int
}

type sellCall struct {
	contract   string
	percentage int
	slippage   int
}

// fakeSwapper returns per-contract canned results; unknown contracts fail.
type fakeSwapper struct {
	buys    []buyCall
	sells   []sellCall
	results map[string]domain.TradeResult
}

func (f *fakeSwapper) Buy(ctx context.Context, contractAddress string, amountSOL float64, slippageBps int) domain.TradeResult {
	f.buys = append(f.buys, buyCall{contractAddress, amountSOL, slippageBps})
	return f.result(contractAddress)
}

func (f *fakeSwapper) Sell(ctx context.Context, contractAddress string, percentage, slippageBps int) domain.TradeResult {
	f.sells = append(f.sells, sellCall{contractAddress, percentage, slippageBps})
	return f.result(contractAddress)
}

func (f *fakeSwapper) result(contract string) domain.TradeResult {
	if r, ok := f.results[contract]; ok {
		return r
	}
	return domain.TradeResult{Error: "no route"}
}

func newTestProcessor(q *fakeQueue, s *fakeSwapper) *Processor {
	return NewProcessor(ProcessorOptions{
		API:      q,
		Executor: s,
		Logger:   log.New(io.Discard, "", 0),
	})
}

func TestProcessor_BuySuccess(t *testing.T) {
	queue := newFakeQueue()
	queue.trades = []domain.Trade{{ID: "t1", ContractAddress: "Mint1", AllocationSOL: 0.5}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1", OutputAmount: 42_000_000},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	require.Len(t, swapper.buys, 1)
	assert.Equal(t, 0.5, swapper.buys[0].amount)
	assert.Equal(t, 100, swapper.buys[0].slippage)

	require.Len(t, queue.bought, 1)
	assert.Equal(t, boughtReport{"t1", "sig1", 42_000_000}, queue.bought[0])
	assert.Empty(t, queue.failed)
}

func TestProcessor_BuyDefaultAllocation(t *testing.T) {
	queue := newFakeQueue()
	queue.trades = []domain.Trade{{ID: "t1", ContractAddress: "Mint1"}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1"},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	require.Len(t, swapper.buys, 1)
	assert.Equal(t, 0.1, swapper.buys[0].amount)
}

func TestProcessor_BuyFailureReported(t *testing.T) {
	queue := newFakeQueue()
	queue.trades = []domain.Trade{{ID: "t1", ContractAddress: "Unknown"}}
	swapper := &fakeSwapper{}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	assert.Equal(t, "no route", queue.failed["t1"])
	assert.Empty(t, queue.bought)
}

func TestProcessor_BatchContinuesPastFailures(t *testing.T) {
	queue := newFakeQueue()
	queue.trades = []domain.Trade{
		{ID: "t1", ContractAddress: "Dead"},
		{ID: "t2", ContractAddress: "Mint2", AllocationSOL: 0.1},
	}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint2": {Success: true, Signature: "sig2"},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	assert.Contains(t, queue.failed, "t1")
	require.Len(t, queue.bought, 1)
	assert.Equal(t, "t2", queue.bought[0].tradeID)
}

func TestProcessor_SellSuccess(t *testing.T) {
	queue := newFakeQueue()
	queue.sells = []domain.SellRequest{{ID: "s1", ContractAddress: "Mint1", Percentage: 100, SlippageBps: 200}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1", OutputAmount: 250_000_000},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	require.Len(t, swapper.sells, 1)
	assert.Equal(t, sellCall{"Mint1", 100, 200}, swapper.sells[0])

	require.Len(t, queue.executed, 1)
	assert.Equal(t, sellReport{"s1", "sig1", 0.25}, queue.executed[0])
	assert.Empty(t, queue.partialTP1)
}

func TestProcessor_SellDefaults(t *testing.T) {
	queue := newFakeQueue()
	queue.sells = []domain.SellRequest{{ID: "s1", ContractAddress: "Mint1"}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1"},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	require.Len(t, swapper.sells, 1)
	assert.Equal(t, 100, swapper.sells[0].percentage, "an unset percentage means full liquidation")
	assert.Equal(t, 100, swapper.sells[0].slippage)
}

func TestProcessor_HalfSellLinkedToTradeReportsPartialTP1(t *testing.T) {
	queue := newFakeQueue()
	queue.sells = []domain.SellRequest{{ID: "s1", TradeID: "t1", ContractAddress: "Mint1", Percentage: 50}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1"},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	assert.Equal(t, []string{"t1"}, queue.partialTP1)
}

func TestProcessor_HalfSellWithoutTradeSkipsPartialTP1(t *testing.T) {
	queue := newFakeQueue()
	queue.sells = []domain.SellRequest{{ID: "s1", ContractAddress: "Mint1", Percentage: 50}}
	swapper := &fakeSwapper{results: map[string]domain.TradeResult{
		"Mint1": {Success: true, Signature: "sig1"},
	}}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	assert.Empty(t, queue.partialTP1)
}

func TestProcessor_SellMissingContractFailsFast(t *testing.T) {
	queue := newFakeQueue()
	queue.sells = []domain.SellRequest{{ID: "s1", TradeID: "t1"}}
	swapper := &fakeSwapper{}

	require.NoError(t, newTestProcessor(queue, swapper).runCycle(context.Background()))

	assert.Equal(t, "missing contract address", queue.sellFailed["s1"])
	assert.Empty(t, swapper.sells, "no swap may be attempted without a contract")
}

func TestProcessor_BackendUnreachableIsACycleError(t *testing.T) {
	queue := newFakeQueue()
	queue.tradesErr = errors.New("connection refused")
	swapper := &fakeSwapper{}

	err := newTestProcessor(queue, swapper).runCycle(context.Background())
	require.Error(t, err)
}
