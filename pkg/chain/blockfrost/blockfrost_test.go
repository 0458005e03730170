package blockfrost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/version"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	b, err := New(Config{URL: server.URL, ProjectID: "test-project"})
	require.NoError(t, err)
	return b
}

func TestBackend_UTxOsAt(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-project", r.Header.Get("project_id"))
		assert.Equal(t, "/addresses/addr1/utxos", r.URL.Path)
		w.Write([]byte(`[
			{
				"tx_hash": "aa11",
				"output_index": 1,
				"address": "addr1",
				"amount": [
					{"unit": "lovelace", "quantity": "5000000"},
					{"unit": "policytoken", "quantity": "42"}
				],
				"data_hash": "dh1",
				"inline_datum": "d87980"
			}
		]`))
	})

	utxos, err := backend.UTxOsAt(context.Background(), "addr1")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, chain.OutRef{TxHash: "aa11", Index: 1}, utxos[0].Ref)
	assert.Equal(t, int64(5_000_000), utxos[0].Value.Coin())
	assert.Equal(t, int64(42), utxos[0].Value.AmountOf("policytoken"))
	assert.Equal(t, "dh1", utxos[0].DatumHash)
	assert.Equal(t, []byte{0xd8, 0x79, 0x80}, utxos[0].InlineDatum)
}

func TestBackend_SendsAgentHeader(t *testing.T) {
	var getAgent, submitAgent string
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			submitAgent = r.Header.Get("User-Agent")
			w.Write([]byte(`"feedhash"`))
			return
		}
		getAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"slot":1,"hash":"h","height":1,"time":0}`))
	})

	_, err := backend.Tip(context.Background())
	require.NoError(t, err)
	_, err = backend.SubmitTx(context.Background(), []byte{0x84})
	require.NoError(t, err)

	assert.Equal(t, version.AgentString(), getAgent)
	assert.Equal(t, version.AgentString(), submitAgent)
}

func TestBackend_DatumByHash(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scripts/datum/dh1/cbor", r.URL.Path)
		w.Write([]byte(`{"cbor":"d87980"}`))
	})

	raw, err := backend.DatumByHash(context.Background(), "dh1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xd8, 0x79, 0x80}, raw)
}

func TestBackend_SubmitTxOK(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
		w.Write([]byte(`"feedhash"`))
	})

	hash, err := backend.SubmitTx(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "feedhash", hash)
}

func TestBackend_SubmitTxRejected(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"ValueNotConservedUTxO"}`))
	})

	_, err := backend.SubmitTx(context.Background(), []byte{0x84})
	assert.ErrorIs(t, err, chain.ErrSubmissionRejected)
}

func TestBackend_ServerErrorIsUnavailable(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := backend.UTxOsAt(context.Background(), "addr1")
	assert.ErrorIs(t, err, chain.ErrBackendUnavailable)
}

func TestBackend_TxConfirmed(t *testing.T) {
	found := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"hash":"x"}`))
	})
	confirmed, err := found.TxConfirmed(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, confirmed)

	missing := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	confirmed, err = missing.TxConfirmed(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestNew_RequiresProjectID(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
