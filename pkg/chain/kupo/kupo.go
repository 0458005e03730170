// Package kupo implements chain queries against a Kupo UTxO indexer. UTxO
// lookups through an indexer are much cheaper than scanning through a full
// query API, so when one is configured it serves all UTxO and datum reads.
package kupo

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/version"
)

const datumCacheSize = 1024

// Backend talks to one Kupo instance. Datums are immutable once resolved,
// so they are cached by hash.
type Backend struct {
	baseURL    string
	client     *http.Client
	datumCache *ristretto.Cache
	logger     *logging.Logger
}

// Config holds Kupo connection settings.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  *logging.Logger
}

// New creates a Kupo backend.
func New(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("kupo: url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * datumCacheSize,
		MaxCost:     datumCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("kupo: create datum cache: %w", err)
	}

	return &Backend{
		baseURL:    cfg.URL,
		client:     &http.Client{Timeout: timeout},
		datumCache: cache,
		logger:     logger,
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "kupo"
}

// Close releases the datum cache.
func (b *Backend) Close() {
	b.datumCache.Close()
}

// matchResponse is one entry of /matches/{pattern}.
type matchResponse struct {
	TransactionID string `json:"transaction_id"`
	OutputIndex   uint32 `json:"output_index"`
	Address       string `json:"address"`
	Value         struct {
		Coins  int64            `json:"coins"`
		Assets map[string]int64 `json:"assets"`
	} `json:"value"`
	DatumHash *string `json:"datum_hash"`
	DatumType string  `json:"datum_type"` // "hash" or "inline"
	CreatedAt struct {
		SlotNo uint64 `json:"slot_no"`
	} `json:"created_at"`
}

// UTxOsAt returns unspent outputs matching the address pattern.
func (b *Backend) UTxOsAt(ctx context.Context, address string) ([]chain.UTxO, error) {
	return b.matches(ctx, address)
}

// UTxOsWithUnit returns unspent outputs at the address carrying unit. Kupo
// patterns match one dimension at a time, so the address matches are
// filtered client-side.
func (b *Backend) UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error) {
	utxos, err := b.matches(ctx, address)
	if err != nil {
		return nil, err
	}
	filtered := utxos[:0]
	for _, utxo := range utxos {
		if utxo.Value.HasUnit(unit) {
			filtered = append(filtered, utxo)
		}
	}
	return filtered, nil
}

func (b *Backend) matches(ctx context.Context, pattern string) ([]chain.UTxO, error) {
	body, err := b.get(ctx, "/matches/"+pattern+"?unspent")
	if err != nil {
		return nil, err
	}

	var entries []matchResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("kupo: decoding matches: %w", err)
	}

	utxos := make([]chain.UTxO, 0, len(entries))
	for _, entry := range entries {
		utxos = append(utxos, entry.toUTxO())
	}
	return utxos, nil
}

func (m matchResponse) toUTxO() chain.UTxO {
	value := make(chain.Value, len(m.Value.Assets)+1)
	value[chain.Lovelace] = m.Value.Coins
	for assetID, qty := range m.Value.Assets {
		// Kupo keys assets as "policy.name"; the unit form drops the dot.
		value[strings.Replace(assetID, ".", "", 1)] = qty
	}

	utxo := chain.UTxO{
		Ref:     chain.OutRef{TxHash: m.TransactionID, Index: m.OutputIndex},
		Address: m.Address,
		Value:   value,
		Slot:    m.CreatedAt.SlotNo,
	}
	if m.DatumHash != nil {
		utxo.DatumHash = *m.DatumHash
	}
	return utxo
}

// datumResponse is the /datums/{hash} answer.
type datumResponse struct {
	Datum string `json:"datum"`
}

// DatumByHash resolves a datum's raw CBOR, serving repeats from cache.
func (b *Backend) DatumByHash(ctx context.Context, hash string) ([]byte, error) {
	if cached, ok := b.datumCache.Get(hash); ok {
		if raw, ok := cached.([]byte); ok {
			return raw, nil
		}
	}

	body, err := b.get(ctx, "/datums/"+hash)
	if err != nil {
		return nil, err
	}

	var resp datumResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kupo: decoding datum: %w", err)
	}
	if resp.Datum == "" {
		return nil, fmt.Errorf("%w: %s", chain.ErrDatumNotFound, hash)
	}
	raw, err := hex.DecodeString(resp.Datum)
	if err != nil {
		return nil, fmt.Errorf("kupo: datum hex: %w", err)
	}

	b.datumCache.Set(hash, raw, 1)
	return raw, nil
}

// checkpointResponse is one entry of /checkpoints.
type checkpointResponse struct {
	SlotNo     uint64 `json:"slot_no"`
	HeaderHash string `json:"header_hash"`
}

// Tip returns the most recent checkpoint Kupo has indexed.
func (b *Backend) Tip(ctx context.Context) (chain.Tip, error) {
	body, err := b.get(ctx, "/checkpoints")
	if err != nil {
		return chain.Tip{}, err
	}

	var checkpoints []checkpointResponse
	if err := json.Unmarshal(body, &checkpoints); err != nil {
		return chain.Tip{}, fmt.Errorf("kupo: decoding checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		return chain.Tip{}, fmt.Errorf("%w: no checkpoints", chain.ErrNotFound)
	}
	// Checkpoints are returned newest first.
	return chain.Tip{
		Slot: checkpoints[0].SlotNo,
		Hash: checkpoints[0].HeaderHash,
	}, nil
}

// TxConfirmed reports inclusion by asking for the transaction's first
// produced output.
func (b *Backend) TxConfirmed(ctx context.Context, txHash string) (bool, error) {
	body, err := b.get(ctx, "/matches/0@"+txHash)
	if err != nil {
		return false, err
	}
	var entries []matchResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		return false, fmt.Errorf("kupo: decoding matches: %w", err)
	}
	return len(entries) > 0, nil
}

func (b *Backend) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("kupo: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", chain.ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", chain.ErrNotFound, path)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", chain.ErrBackendUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("kupo: HTTP %d: %s", resp.StatusCode, string(body))
	}
}
