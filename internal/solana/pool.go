package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-trade-engine/internal/observability"
)

// ErrNoRPCAvailable is returned when every configured endpoint fails the
// liveness probe. Fatal until a later Connect succeeds.
var ErrNoRPCAvailable = errors.New("no solana rpc endpoint available")

// DefaultEndpoints is the ordered mainnet fallback list.
var DefaultEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://solana-mainnet.g.alchemy.com/v2/demo",
	"https://rpc.ankr.com/solana",
}

// Pool holds an ordered list of RPC endpoints and one active client. The
// active handle is established once and replaced atomically on failover, so
// both polling loops can read it concurrently without locks.
type Pool struct {
	endpoints []string
	opts      []ClientOption
	logger    *log.Logger
	confirmer *WSConfirmer

	active    atomic.Pointer[HTTPClient]
	connectMu sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithClientOptions passes options through to each endpoint client.
func WithClientOptions(opts ...ClientOption) PoolOption {
	return func(p *Pool) {
		p.opts = opts
	}
}

// WithConfirmer sets a WebSocket confirmer tried before HTTP status polling.
func WithConfirmer(c *WSConfirmer) PoolOption {
	return func(p *Pool) {
		p.confirmer = c
	}
}

// NewPool creates a Pool over the given endpoints in fallback order.
func NewPool(endpoints []string, logger *log.Logger, opts ...PoolOption) *Pool {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &Pool{
		endpoints: endpoints,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect probes endpoints in order and makes the first live one active.
// Safe to call again on demand from either loop.
func (p *Pool) Connect(ctx context.Context) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	for _, endpoint := range p.endpoints {
		client := NewHTTPClient(endpoint, p.opts...)
		if _, err := client.GetLatestBlockhash(ctx); err != nil {
			p.logger.Printf("rpc %s failed liveness probe: %v", endpoint, err)
			continue
		}
		if p.active.Swap(client) != nil {
			observability.RecordRPCFailover()
		}
		p.logger.Printf("connected to solana rpc: %s", endpoint)
		return nil
	}

	return ErrNoRPCAvailable
}

// client returns the active client, connecting lazily if needed.
func (p *Pool) client(ctx context.Context) (*HTTPClient, error) {
	if c := p.active.Load(); c != nil {
		return c, nil
	}
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p.active.Load(), nil
}

// GetSOLBalance returns the wallet's SOL balance (lamports / 1e9).
func (p *Pool) GetSOLBalance(ctx context.Context, pubkey string) (float64, error) {
	c, err := p.client(ctx)
	if err != nil {
		return 0, err
	}
	lamports, err := c.GetBalance(ctx, pubkey)
	if err != nil {
		return 0, err
	}
	return float64(lamports) / LamportsPerSOL, nil
}

// GetTokenBalance returns the raw base-unit balance of owner's token account
// for mint. Zero with nil error means no account exists.
func (p *Pool) GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	c, err := p.client(ctx)
	if err != nil {
		return 0, err
	}
	return c.GetTokenBalance(ctx, owner, mint)
}

// SendTransaction submits signed wire bytes via the active endpoint.
func (p *Pool) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	c, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	return c.SendTransaction(ctx, signedTxBase64)
}

// ConfirmTransaction waits for the signature to confirm, preferring the
// WebSocket subscription when one is configured and falling back to HTTP
// status polling. A timeout is reported as (false, nil), not a failure.
func (p *Pool) ConfirmTransaction(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	if p.confirmer != nil {
		confirmed, err := p.confirmer.Confirm(ctx, signature, timeout)
		if err == nil {
			return confirmed, nil
		}
		p.logger.Printf("ws confirmation unavailable (%v), polling signature status", err)
	}

	c, err := p.client(ctx)
	if err != nil {
		return false, fmt.Errorf("confirm %s: %w", signature, err)
	}
	return c.ConfirmTransaction(ctx, signature, timeout)
}
