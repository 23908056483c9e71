package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfirmer confirms transactions with signatureSubscribe over WebSocket.
// Confirmations are infrequent (one per executed swap), so each call dials a
// fresh connection rather than maintaining a shared subscription multiplexer.
type WSConfirmer struct {
	endpoint  string
	logger    *log.Logger
	requestID atomic.Uint64

	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

// NewWSConfirmer creates a confirmer for a ws:// or wss:// RPC endpoint.
func NewWSConfirmer(endpoint string, logger *log.Logger) *WSConfirmer {
	if logger == nil {
		logger = log.Default()
	}
	return &WSConfirmer{
		endpoint:         endpoint,
		logger:           logger,
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     10 * time.Second,
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	Params  *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params,omitempty"`
}

// Confirm subscribes to the signature and waits for its confirmation
// notification. A timeout returns (false, nil); transport failures return an
// error so the caller can fall back to HTTP polling.
func (c *WSConfirmer) Confirm(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)

	for {
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			conn.SetReadDeadline(dl)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Deadline expiry is the confirmation timeout, not a transport
			// failure: the transaction may still land.
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				return false, nil
			}
			return false, fmt.Errorf("read notification: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Error != nil {
			return false, msg.Error
		}

		// signatureSubscribe fires once and auto-unsubscribes.
		if msg.Method == "signatureNotification" && msg.Params != nil {
			if txErr := msg.Params.Result.Value.Err; txErr != nil {
				return false, fmt.Errorf("transaction failed on-chain: %v", txErr)
			}
			return true, nil
		}
	}
}
