package solana

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fastOpts keeps probe failures from sleeping through retry backoff.
func fastOpts() PoolOption {
	return WithClientOptions(WithMaxRetries(0), WithRetryDelay(time.Millisecond))
}

func blockhashHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		switch req.Method {
		case "getLatestBlockhash":
			rpcResult(t, w, req.ID, map[string]interface{}{
				"value": map[string]interface{}{"blockhash": "8HqlY4wnybkJDJx8XgdXqYN7qEai331sK8GmyNNtmrLz"},
			})
		case "getBalance":
			rpcResult(t, w, req.ID, map[string]interface{}{"value": uint64(2_500_000_000)})
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}
}

func TestPool_ConnectFallsBackToNextEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	live := httptest.NewServer(blockhashHandler(t))
	defer live.Close()

	pool := NewPool([]string{dead.URL, live.URL}, log.New(io.Discard, "", 0), fastOpts())
	if err := pool.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if got := pool.active.Load().Endpoint(); got != live.URL {
		t.Errorf("expected active endpoint %s, got %s", live.URL, got)
	}
}

func TestPool_ConnectPrefersFirstLiveEndpoint(t *testing.T) {
	first := httptest.NewServer(blockhashHandler(t))
	defer first.Close()
	second := httptest.NewServer(blockhashHandler(t))
	defer second.Close()

	pool := NewPool([]string{first.URL, second.URL}, log.New(io.Discard, "", 0), fastOpts())
	if err := pool.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if got := pool.active.Load().Endpoint(); got != first.URL {
		t.Errorf("expected first endpoint %s, got %s", first.URL, got)
	}
}

func TestPool_ConnectAllEndpointsDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	pool := NewPool([]string{dead.URL}, log.New(io.Discard, "", 0), fastOpts())
	err := pool.Connect(context.Background())
	if err != ErrNoRPCAvailable {
		t.Fatalf("expected ErrNoRPCAvailable, got %v", err)
	}
}

func TestPool_GetSOLBalanceConnectsLazily(t *testing.T) {
	live := httptest.NewServer(blockhashHandler(t))
	defer live.Close()

	pool := NewPool([]string{live.URL}, log.New(io.Discard, "", 0), fastOpts())

	balance, err := pool.GetSOLBalance(context.Background(), "Wallet")
	if err != nil {
		t.Fatalf("GetSOLBalance: %v", err)
	}
	if balance != 2.5 {
		t.Errorf("expected 2.5 SOL, got %f", balance)
	}
}
