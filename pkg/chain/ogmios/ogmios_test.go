package ogmios

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

var upgrader = websocket.Upgrader{}

// newOgmiosServer answers every submitTransaction with the given responder.
func newOgmiosServer(t *testing.T, respond func(req rpcRequest) rpcResponse) *Backend {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if err := conn.WriteJSON(respond(req)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	backend, err := New(Config{URL: "ws" + strings.TrimPrefix(server.URL, "http")})
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return backend
}

func TestBackend_SubmitTxOK(t *testing.T) {
	backend := newOgmiosServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "submitTransaction", req.Method)
		result, _ := json.Marshal(map[string]interface{}{
			"transaction": map[string]string{"id": "feedhash"},
		})
		return rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash, err := backend.SubmitTx(ctx, []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "feedhash", hash)
}

func TestBackend_SubmitTxRejected(t *testing.T) {
	backend := newOgmiosServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: 3005, Message: "ValueNotConserved"},
			ID:      req.ID,
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := backend.SubmitTx(ctx, []byte{0x84})
	assert.ErrorIs(t, err, chain.ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "ValueNotConserved")
}

func TestBackend_SequentialSubmits(t *testing.T) {
	backend := newOgmiosServer(t, func(req rpcRequest) rpcResponse {
		result, _ := json.Marshal(map[string]interface{}{
			"transaction": map[string]string{"id": "h"},
		})
		return rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		_, err := backend.SubmitTx(ctx, []byte{0x84})
		require.NoError(t, err)
	}
}

func TestBackend_UnreachableIsUnavailable(t *testing.T) {
	backend, err := New(Config{URL: "ws://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = backend.SubmitTx(ctx, []byte{0x84})
	assert.ErrorIs(t, err, chain.ErrBackendUnavailable)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
