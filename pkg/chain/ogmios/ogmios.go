// Package ogmios implements transaction submission over an Ogmios
// WebSocket JSON-RPC bridge to a local Cardano node.
package ogmios

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
)

const (
	initialReconnectBackoff = 1 * time.Second
	maxReconnectBackoff     = 30 * time.Second
	writeTimeout            = 10 * time.Second
)

// Backend submits transactions through one Ogmios endpoint. The connection
// is dialed lazily and re-dialed with exponential backoff after a failure.
// Requests are serialized; the node answers them in order.
type Backend struct {
	url    string
	logger *logging.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	nextID         uint64
	reconnectDelay time.Duration
}

// Config holds Ogmios connection settings.
type Config struct {
	URL    string
	Logger *logging.Logger
}

// New creates an Ogmios backend.
func New(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ogmios: url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Backend{
		url:            cfg.URL,
		logger:         logger,
		reconnectDelay: initialReconnectBackoff,
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "ogmios"
}

// Close shuts the connection down.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("ogmios error %d: %s", e.Code, e.Message)
}

// SubmitTx broadcasts raw transaction CBOR through submitTransaction. A
// JSON-RPC error is a node-level rejection and must not be retried with the
// same transaction.
func (b *Backend) SubmitTx(ctx context.Context, txCBOR []byte) (string, error) {
	params := map[string]interface{}{
		"transaction": map[string]string{"cbor": hex.EncodeToString(txCBOR)},
	}

	result, err := b.call(ctx, "submitTransaction", params)
	if err != nil {
		var rpcErr *rpcError
		if asRPCError(err, &rpcErr) {
			return "", fmt.Errorf("%w: %v", chain.ErrSubmissionRejected, rpcErr)
		}
		return "", fmt.Errorf("%w: %v", chain.ErrBackendUnavailable, err)
	}

	var resp struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("ogmios: decoding submit result: %w", err)
	}
	return resp.Transaction.ID, nil
}

func asRPCError(err error, target **rpcError) bool {
	rpcErr, ok := err.(*rpcError) //nolint:errorlint // call returns it unwrapped
	if ok {
		*target = rpcErr
	}
	return ok
}

// call performs one serialized request/response exchange.
func (b *Backend) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.ensureConnLocked(ctx)
	if err != nil {
		return nil, err
	}

	b.nextID++
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: b.nextID}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		b.dropConnLocked()
		return nil, fmt.Errorf("write: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(writeTimeout))
	}

	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			b.dropConnLocked()
			return nil, fmt.Errorf("read: %w", err)
		}
		if resp.ID != req.ID {
			// Stale answer from an abandoned request.
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// ensureConnLocked dials if needed, backing off between failed attempts.
func (b *Backend) ensureConnLocked(ctx context.Context) (*websocket.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
		if err == nil {
			b.logger.Info("Connected to ogmios", "url", b.url)
			b.conn = conn
			b.reconnectDelay = initialReconnectBackoff
			return conn, nil
		}

		// Jitter spreads ingest nodes reconnecting at once.
		jitter := time.Duration(rand.Int63n(int64(b.reconnectDelay)/2 + 1)) //nolint:gosec
		wait := b.reconnectDelay + jitter
		b.logger.Warn("Ogmios dial failed, backing off", "url", b.url, "backoff", wait.String(), "error", err.Error())

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w", b.url, ctx.Err())
		case <-time.After(wait):
			b.reconnectDelay *= 2
			if b.reconnectDelay > maxReconnectBackoff {
				b.reconnectDelay = maxReconnectBackoff
			}
		}
	}
}

func (b *Backend) dropConnLocked() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}
