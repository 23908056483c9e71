// Package executor turns quotes into signed, submitted and (best-effort)
// confirmed swap transactions. All its operations return a TradeResult rather
// than an error: buy and sell callers report every failure to the backend the
// same way, so failures are values here, not control flow.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-trade-engine/internal/domain"
	"solana-trade-engine/internal/jupiter"
	"solana-trade-engine/internal/observability"
	"solana-trade-engine/internal/solana"
)

// Default execution parameters.
const (
	// FeeReserveSOL is kept in the wallet on every buy to cover fees.
	FeeReserveSOL = 0.01

	// DefaultSlippageBps is the slippage tolerance when a request carries none.
	DefaultSlippageBps = 100

	defaultConfirmTimeout = 60 * time.Second
)

// ChainClient is the subset of the Solana client the executor needs.
type ChainClient interface {
	GetSOLBalance(ctx context.Context, pubkey string) (float64, error)
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)
	SendTransaction(ctx context.Context, signedTxBase64 string) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, timeout time.Duration) (bool, error)
}

// QuoteService acquires quotes and prebuilt swap transactions.
type QuoteService interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error)
}

// Signer exposes the wallet address and message signing.
type Signer interface {
	PublicKey() string
	Sign(message []byte) []byte
}

// Executor executes buys and sells against the aggregator and chain.
type Executor struct {
	chain          ChainClient
	quotes         QuoteService
	signer         Signer
	logger         *log.Logger
	confirmTimeout time.Duration
}

// Options configures an Executor.
type Options struct {
	Chain          ChainClient
	Quotes         QuoteService
	Signer         Signer
	Logger         *log.Logger
	ConfirmTimeout time.Duration // default 60s
}

// New creates an Executor.
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout == 0 {
		confirmTimeout = defaultConfirmTimeout
	}

	return &Executor{
		chain:          opts.Chain,
		quotes:         opts.Quotes,
		signer:         opts.Signer,
		logger:         logger,
		confirmTimeout: confirmTimeout,
	}
}

// Execute signs, submits and confirms a quoted swap. A confirmation timeout
// still reports success with the signature: the transaction was broadcast and
// may land later, and double-submitting is worse than a false negative. Any
// failure before submission is a hard failure.
func (e *Executor) Execute(ctx context.Context, quote *jupiter.Quote) domain.TradeResult {
	swapTx, err := e.quotes.BuildSwap(ctx, quote, e.signer.PublicKey())
	if err != nil {
		return failure("swap build failed: %v", err)
	}

	signed, err := solana.SignTransaction(swapTx, e.signer)
	if err != nil {
		return failure("sign transaction: %v", err)
	}

	signature, err := e.chain.SendTransaction(ctx, signed)
	if err != nil {
		return failure("send transaction: %v", err)
	}
	e.logger.Printf("tx sent: %s", signature)

	confirmed, err := e.chain.ConfirmTransaction(ctx, signature, e.confirmTimeout)
	switch {
	case err != nil:
		e.logger.Printf("tx %s sent, confirmation check failed: %v", signature, err)
		observability.RecordConfirmation("timeout")
	case confirmed:
		e.logger.Printf("tx confirmed: %s", signature)
		observability.RecordConfirmation("confirmed")
	default:
		e.logger.Printf("tx %s sent, unconfirmed after %v", signature, e.confirmTimeout)
		observability.RecordConfirmation("timeout")
	}

	return domain.TradeResult{
		Success:      true,
		Signature:    signature,
		OutputAmount: quote.OutAmount,
	}
}

// Buy swaps SOL into the token. The wallet must hold the amount plus the fee
// reserve; otherwise it fails fast without touching the quote service.
func (e *Executor) Buy(ctx context.Context, contractAddress string, amountSOL float64, slippageBps int) domain.TradeResult {
	balance, err := e.chain.GetSOLBalance(ctx, e.signer.PublicKey())
	if err != nil {
		return failure("balance check failed: %v", err)
	}
	if balance < amountSOL+FeeReserveSOL {
		return failure("insufficient SOL balance: %.4f", balance)
	}

	lamports := uint64(amountSOL * solana.LamportsPerSOL)
	quote, err := e.quotes.GetQuote(ctx, jupiter.SOLMint, contractAddress, lamports, slippageBps)
	if err != nil {
		return failure("failed to get buy quote: %v", err)
	}
	e.logger.Printf("quote: %.4f SOL -> %d tokens", amountSOL, quote.OutAmount)

	return e.Execute(ctx, quote)
}

// Sell swaps a percentage of the held token balance back into SOL. A zero or
// unreadable balance, or a computed sell amount of zero, fails fast without
// touching the quote service.
func (e *Executor) Sell(ctx context.Context, contractAddress string, percentage, slippageBps int) domain.TradeResult {
	balance, err := e.chain.GetTokenBalance(ctx, e.signer.PublicKey(), contractAddress)
	if err != nil {
		return failure("token balance unavailable: %v", err)
	}
	if balance == 0 {
		return failure("no token balance found")
	}

	if percentage < 0 {
		percentage = 0
	}
	sellAmount := balance * uint64(percentage) / 100
	if sellAmount == 0 {
		return failure("no tokens to sell")
	}

	quote, err := e.quotes.GetQuote(ctx, contractAddress, jupiter.SOLMint, sellAmount, slippageBps)
	if err != nil {
		return failure("failed to get sell quote: %v", err)
	}
	e.logger.Printf("quote: %d tokens -> %.4f SOL", sellAmount, float64(quote.OutAmount)/solana.LamportsPerSOL)

	return e.Execute(ctx, quote)
}

func failure(format string, args ...interface{}) domain.TradeResult {
	return domain.TradeResult{Error: fmt.Sprintf(format, args...)}
}
