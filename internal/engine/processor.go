package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/executor"
	"solana-trade-engine/internal/observability"
	"solana-trade-engine/internal/solana"
)

// Processor default timings.
const (
	DefaultProcessInterval = 3 * time.Second
	DefaultProcessBackoff  = 10 * time.Second

	// defaultAllocationSOL is used when a queued trade carries no allocation.
	defaultAllocationSOL = 0.1
)

// Processor polls the backend for queued buys and sells and drives them
// through the swap executor. It is the only component that executes
// balance-changing operations; the monitor only requests them.
type Processor struct {
	api          TradeQueue
	exec         SwapExecutor
	logger       *log.Logger
	interval     time.Duration
	errorBackoff time.Duration
	slippageBps  int
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	API          TradeQueue
	Executor     SwapExecutor
	Logger       *log.Logger
	Interval     time.Duration // default 3s
	ErrorBackoff time.Duration // default 10s
	SlippageBps  int           // default 100
}

// NewProcessor creates a trade processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultProcessInterval
	}
	backoff := opts.ErrorBackoff
	if backoff == 0 {
		backoff = DefaultProcessBackoff
	}
	slippage := opts.SlippageBps
	if slippage == 0 {
		slippage = executor.DefaultSlippageBps
	}

	return &Processor{
		api:          opts.API,
		exec:         opts.Executor,
		logger:       logger,
		interval:     interval,
		errorBackoff: backoff,
		slippageBps:  slippage,
	}
}

// Run polls until the context is cancelled. Individual trade or sell failures
// never halt the batch; only cycle-level failures (backend unreachable)
// trigger the longer backoff sleep.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Println("trade processor started")

	for {
		start := time.Now()
		err := p.runCycle(ctx)
		observability.RecordCycle("processor", time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RecordCycleError("processor")
			p.logger.Printf("cycle failed: %v (backing off %v)", err, p.errorBackoff)
			if !sleep(ctx, p.errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if !sleep(ctx, p.interval) {
			return ctx.Err()
		}
	}
}

// runCycle drains the pending buy and sell queues once.
func (p *Processor) runCycle(ctx context.Context) error {
	trades, err := p.api.PendingTrades(ctx)
	if err != nil {
		return fmt.Errorf("pending trades: %w", err)
	}
	for i := range trades {
		p.processBuy(ctx, &trades[i])
	}

	sells, err := p.api.PendingSells(ctx)
	if err != nil {
		return fmt.Errorf("pending sells: %w", err)
	}
	for i := range sells {
		p.processSell(ctx, &sells[i])
	}

	return nil
}

func (p *Processor) processBuy(ctx context.Context, trade *domain.Trade) {
	amount := trade.AllocationSOL
	if amount <= 0 {
		amount = defaultAllocationSOL
	}
	p.logger.Printf("processing buy %s: %s for %.3f SOL", trade.ID, shortAddr(trade.ContractAddress), amount)

	result := p.exec.Buy(ctx, trade.ContractAddress, amount, p.slippageBps)
	if !result.Success {
		observability.RecordSwap("buy", "failed")
		if err := p.api.MarkTradeFailed(ctx, trade.ID, result.Error); err != nil {
			p.logger.Printf("report buy failure for %s: %v", trade.ID, err)
		}
		p.api.Log(ctx, "error", "buy failed: "+result.Error, "trade: "+trade.ID)
		return
	}

	observability.RecordSwap("buy", "success")
	if err := p.api.MarkTradeBought(ctx, trade.ID, result.Signature, result.OutputAmount); err != nil {
		p.logger.Printf("report buy success for %s: %v", trade.ID, err)
	}
	p.api.Log(ctx, "success", fmt.Sprintf("buy executed: %.3f SOL", amount), "tx: "+result.Signature)
}

func (p *Processor) processSell(ctx context.Context, sell *domain.SellRequest) {
	if sell.ContractAddress == "" {
		p.logger.Printf("sell %s missing contract address", sell.ID)
		if err := p.api.MarkSellFailed(ctx, sell.ID, "missing contract address"); err != nil {
			p.logger.Printf("report sell failure for %s: %v", sell.ID, err)
		}
		return
	}

	percentage := sell.Percentage
	if percentage == 0 {
		percentage = 100
	}
	slippage := sell.SlippageBps
	if slippage == 0 {
		slippage = p.slippageBps
	}
	p.logger.Printf("processing sell %s: %d%% of %s", sell.ID, percentage, shortAddr(sell.ContractAddress))

	result := p.exec.Sell(ctx, sell.ContractAddress, percentage, slippage)
	if !result.Success {
		observability.RecordSwap("sell", "failed")
		if err := p.api.MarkSellFailed(ctx, sell.ID, result.Error); err != nil {
			p.logger.Printf("report sell failure for %s: %v", sell.ID, err)
		}
		p.api.Log(ctx, "error", "sell failed: "+result.Error, "sell: "+sell.ID)
		return
	}

	observability.RecordSwap("sell", "success")
	realizedSOL := float64(result.OutputAmount) / solana.LamportsPerSOL
	if err := p.api.MarkSellExecuted(ctx, sell.ID, result.Signature, realizedSOL); err != nil {
		p.logger.Printf("report sell success for %s: %v", sell.ID, err)
	}
	p.api.Log(ctx, "success", fmt.Sprintf("sell executed: %d%% -> %.4f SOL", percentage, realizedSOL), "tx: "+result.Signature)

	// A 50% sell linked to a trade is by construction the TP1 exit.
	if sell.TradeID != "" && percentage == 50 {
		if err := p.api.MarkPartialTP1(ctx, sell.TradeID); err != nil {
			p.logger.Printf("report partial TP1 for %s: %v", sell.TradeID, err)
		}
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8] + "..."
}
