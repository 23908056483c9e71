// Package backend is the client for the trading backend's task-queue API.
// The backend is the single source of truth for trade state; every write here
// is a request for a transition, not a local mutation.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-trade-engine/internal/domain"
)

// Client talks to the backend over HTTP+JSON with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PendingTrades returns trades queued for buying.
func (c *Client) PendingTrades(ctx context.Context) ([]domain.Trade, error) {
	var trades []domain.Trade
	if err := c.getJSON(ctx, "/api/trades/pending", &trades); err != nil {
		return nil, fmt.Errorf("fetch pending trades: %w", err)
	}
	return trades, nil
}

// PendingSells returns sell requests awaiting execution.
func (c *Client) PendingSells(ctx context.Context) ([]domain.SellRequest, error) {
	var sells []domain.SellRequest
	if err := c.getJSON(ctx, "/api/sells/pending", &sells); err != nil {
		return nil, fmt.Errorf("fetch pending sells: %w", err)
	}
	return sells, nil
}

// OpenPositions returns trades in bought or partial_tp1 status.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.Trade, error) {
	var positions []domain.Trade
	if err := c.getJSON(ctx, "/api/positions/open", &positions); err != nil {
		return nil, fmt.Errorf("fetch open positions: %w", err)
	}
	return positions, nil
}

// MarkTradeBought requests the pending→bought transition.
func (c *Client) MarkTradeBought(ctx context.Context, tradeID, signature string, expectedTokens uint64) error {
	return c.postJSON(ctx, "/api/trades/"+url.PathEscape(tradeID)+"/bought", map[string]interface{}{
		"signature":       signature,
		"expected_tokens": expectedTokens,
	})
}

// MarkTradeFailed requests the pending→failed transition with the error text.
func (c *Client) MarkTradeFailed(ctx context.Context, tradeID, reason string) error {
	return c.postJSON(ctx, "/api/trades/"+url.PathEscape(tradeID)+"/failed", map[string]interface{}{
		"error": reason,
	})
}

// MarkPartialTP1 requests the bought→partial_tp1 transition after a 50% sell.
func (c *Client) MarkPartialTP1(ctx context.Context, tradeID string) error {
	return c.postJSON(ctx, "/api/trades/"+url.PathEscape(tradeID)+"/partial-tp1", map[string]interface{}{})
}

// RequestAutoSell enqueues a sell request for the trade. Execution happens on
// the trade processor's next cycle, never here.
func (c *Client) RequestAutoSell(ctx context.Context, tradeID string, percentage int, reason string) error {
	return c.postJSON(ctx, "/api/trades/"+url.PathEscape(tradeID)+"/auto-sell", map[string]interface{}{
		"percentage": percentage,
		"reason":     reason,
	})
}

// UpdatePositionPrice reports the latest observed price and running high.
func (c *Client) UpdatePositionPrice(ctx context.Context, tradeID string, currentPrice, highestPrice float64) error {
	return c.postJSON(ctx, "/api/positions/"+url.PathEscape(tradeID)+"/price", map[string]interface{}{
		"current_price": currentPrice,
		"highest_price": highestPrice,
	})
}

// MarkSellExecuted reports a completed sell with its realized SOL.
func (c *Client) MarkSellExecuted(ctx context.Context, sellID, txHash string, realizedSOL float64) error {
	return c.postJSON(ctx, "/api/sells/"+url.PathEscape(sellID)+"/executed", map[string]interface{}{
		"tx_hash":      txHash,
		"realized_sol": realizedSOL,
	})
}

// MarkSellFailed reports a failed sell with the error text.
func (c *Client) MarkSellFailed(ctx context.Context, sellID, reason string) error {
	return c.postJSON(ctx, "/api/sells/"+url.PathEscape(sellID)+"/failed", map[string]interface{}{
		"error": reason,
	})
}

// Log sends an activity log entry. Best-effort: failures are logged locally
// and swallowed, never propagated.
func (c *Client) Log(ctx context.Context, level, message, details string) {
	err := c.postJSON(ctx, "/api/logs", map[string]interface{}{
		"level":   level,
		"message": message,
		"details": details,
	})
	if err != nil {
		c.logger.Printf("remote log failed: %v", err)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(string(body), 200))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
