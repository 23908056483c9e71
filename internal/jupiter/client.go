// Package jupiter wraps the Jupiter v6 aggregator: swap quotes with bounded
// retry, prebuilt swap transactions, and the spot price index.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-trade-engine/internal/observability"
)

// Jupiter v6 API endpoints.
const (
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	DefaultSwapURL  = "https://quote-api.jup.ag/v6/swap"
	DefaultPriceURL = "https://api.jup.ag/price/v2"
)

// SOLMint is the wrapped SOL mint address.
const SOLMint = "So11111111111111111111111111111111111111112"

var (
	// ErrNoRoute means the aggregator found no route: the token has no
	// liquidity. Definitive for the attempt; retrying cannot fix it.
	ErrNoRoute = errors.New("no swap route for token")

	// ErrNoSwapTransaction means the swap-build endpoint responded without a
	// transaction payload.
	ErrNoSwapTransaction = errors.New("no swap transaction returned")
)

// Quote is a priced swap proposal. Raw carries the aggregator's full response
// for passthrough to the swap-build endpoint. A quote is valid for exactly
// one execution attempt and is never cached or reused.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	Raw        json.RawMessage
}

// Client talks to the Jupiter aggregator HTTP API.
type Client struct {
	quoteURL   string
	swapURL    string
	priceURL   string
	http       *http.Client
	retries    int
	retryDelay time.Duration
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the quote, swap and price endpoint URLs.
func WithEndpoints(quoteURL, swapURL, priceURL string) Option {
	return func(c *Client) {
		c.quoteURL = quoteURL
		c.swapURL = swapURL
		c.priceURL = priceURL
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithRetries sets the quote attempt budget.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithRetryDelay sets the fixed delay between quote attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Jupiter client with default endpoints and retry policy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		quoteURL:   DefaultQuoteURL,
		swapURL:    DefaultSwapURL,
		priceURL:   DefaultPriceURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		retries:    3,
		retryDelay: 1 * time.Second,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuote requests a swap quote. A structured no-route response returns
// ErrNoRoute immediately without consuming further attempts; transport errors
// are retried with a fixed delay until the attempt budget is spent.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	var lastErr error

	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			observability.RecordQuoteRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		quote, err := c.quoteOnce(ctx, inputMint, outputMint, amount, slippageBps)
		if errors.Is(err, ErrNoRoute) {
			observability.RecordQuoteNoRoute()
			c.logger.Printf("no liquidity for token %s", shortMint(outputMint))
			return nil, err
		}
		if err != nil {
			lastErr = err
			c.logger.Printf("quote attempt %d/%d failed: %v", attempt+1, c.retries, err)
			continue
		}
		return quote, nil
	}

	return nil, fmt.Errorf("quote failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) quoteOnce(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	params := url.Values{
		"inputMint":           {inputMint},
		"outputMint":          {outputMint},
		"amount":              {strconv.FormatUint(amount, 10)},
		"slippageBps":         {strconv.Itoa(slippageBps)},
		"onlyDirectRoutes":    {"false"},
		"asLegacyTransaction": {"false"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if isNoRouteError(apiErr.Error) {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("quote rejected: %s", apiErr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
		InAmount   string `json:"inAmount"`
		OutAmount  string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil || outAmount == 0 {
		return nil, fmt.Errorf("quote carries no output amount")
	}
	inAmount, _ := strconv.ParseUint(parsed.InAmount, 10, 64)

	return &Quote{
		InputMint:  parsed.InputMint,
		OutputMint: parsed.OutputMint,
		InAmount:   inAmount,
		OutAmount:  outAmount,
		Raw:        json.RawMessage(body),
	}, nil
}

// isNoRouteError matches the aggregator's structured no-liquidity responses.
func isNoRouteError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "no route found") || strings.Contains(lower, "could not find")
}

// BuildSwap requests a prebuilt unsigned transaction for the quote, returned
// base64-encoded.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	payload := map[string]interface{}{
		"quoteResponse":             quote.Raw,
		"userPublicKey":             userPublicKey,
		"wrapUnwrapSOL":             true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap build status %d: %s", resp.StatusCode, truncate(string(respBody), 100))
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal swap response: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return "", ErrNoSwapTransaction
	}

	return parsed.SwapTransaction, nil
}

// PriceInSOL is a single best-effort spot price lookup against the price
// index. Callers must have their own fallback; any failure is an error here.
func (c *Client) PriceInSOL(ctx context.Context, mint string) (float64, error) {
	params := url.Values{
		"ids":     {mint},
		"vsToken": {SOLMint},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.priceURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price status %d", resp.StatusCode)
	}

	var parsed struct {
		Data map[string]*struct {
			Price json.Number `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("unmarshal price: %w", err)
	}

	entry := parsed.Data[mint]
	if entry == nil {
		return 0, fmt.Errorf("no price for %s", shortMint(mint))
	}
	price, err := entry.Price.Float64()
	if err != nil {
		return 0, fmt.Errorf("parse price: %w", err)
	}
	return price, nil
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8] + "..."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
