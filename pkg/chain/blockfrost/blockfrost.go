// Package blockfrost implements chain query and submission against the
// Blockfrost HTTP API.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/version"
)

const (
	mainnetURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	preprodURL = "https://cardano-preprod.blockfrost.io/api/v0"

	pageSize = 100
	maxPages = 50
)

// Backend talks to one Blockfrost project. It satisfies both
// chain.QueryBackend and chain.SubmitBackend, plus chain.TxStatusChecker.
type Backend struct {
	baseURL   string
	projectID string
	client    *http.Client
	logger    *logging.Logger
}

// Config holds Blockfrost connection settings.
type Config struct {
	// URL overrides the network default endpoint.
	URL string
	// Network selects the default endpoint when URL is empty: "mainnet" or "preprod".
	Network string
	// ProjectID is the Blockfrost API key.
	ProjectID string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	Logger  *logging.Logger
}

// New creates a Blockfrost backend.
func New(cfg Config) (*Backend, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("blockfrost: project id is required")
	}
	baseURL := cfg.URL
	if baseURL == "" {
		switch cfg.Network {
		case "", "mainnet":
			baseURL = mainnetURL
		case "preprod":
			baseURL = preprodURL
		default:
			return nil, fmt.Errorf("blockfrost: unknown network %q", cfg.Network)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Backend{
		baseURL:   baseURL,
		projectID: cfg.ProjectID,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "blockfrost"
}

// utxoResponse is one entry of /addresses/{address}/utxos.
type utxoResponse struct {
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	Address     string `json:"address"`
	Amount      []struct {
		Unit     string `json:"unit"`
		Quantity string `json:"quantity"`
	} `json:"amount"`
	DataHash    string `json:"data_hash"`
	InlineDatum string `json:"inline_datum"`
	Block       string `json:"block"`
}

// UTxOsAt returns all unspent outputs at an address, following pagination.
func (b *Backend) UTxOsAt(ctx context.Context, address string) ([]chain.UTxO, error) {
	return b.fetchUTxOs(ctx, fmt.Sprintf("/addresses/%s/utxos", address))
}

// UTxOsWithUnit returns unspent outputs at an address that carry the unit.
func (b *Backend) UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error) {
	return b.fetchUTxOs(ctx, fmt.Sprintf("/addresses/%s/utxos/%s", address, unit))
}

func (b *Backend) fetchUTxOs(ctx context.Context, path string) ([]chain.UTxO, error) {
	var all []chain.UTxO
	for page := 1; page <= maxPages; page++ {
		body, err := b.get(ctx, fmt.Sprintf("%s?count=%d&page=%d", path, pageSize, page))
		if err != nil {
			return nil, err
		}

		var entries []utxoResponse
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("blockfrost: decoding utxos: %w", err)
		}

		for _, entry := range entries {
			utxo, err := entry.toUTxO()
			if err != nil {
				return nil, err
			}
			all = append(all, utxo)
		}
		if len(entries) < pageSize {
			break
		}
	}
	return all, nil
}

func (u utxoResponse) toUTxO() (chain.UTxO, error) {
	value := make(chain.Value, len(u.Amount))
	for _, amount := range u.Amount {
		qty, err := strconv.ParseInt(amount.Quantity, 10, 64)
		if err != nil {
			return chain.UTxO{}, fmt.Errorf("blockfrost: quantity %q: %w", amount.Quantity, err)
		}
		value[amount.Unit] = qty
	}

	var inline []byte
	if u.InlineDatum != "" {
		raw, err := hex.DecodeString(u.InlineDatum)
		if err != nil {
			return chain.UTxO{}, fmt.Errorf("blockfrost: inline datum hex: %w", err)
		}
		inline = raw
	}

	return chain.UTxO{
		Ref:         chain.OutRef{TxHash: u.TxHash, Index: u.OutputIndex},
		Address:     u.Address,
		Value:       value,
		DatumHash:   u.DataHash,
		InlineDatum: inline,
	}, nil
}

// DatumByHash resolves a datum's raw CBOR via /scripts/datum/{hash}/cbor.
func (b *Backend) DatumByHash(ctx context.Context, hash string) ([]byte, error) {
	body, err := b.get(ctx, "/scripts/datum/"+hash+"/cbor")
	if err != nil {
		return nil, err
	}

	var resp struct {
		CBOR string `json:"cbor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("blockfrost: decoding datum: %w", err)
	}
	raw, err := hex.DecodeString(resp.CBOR)
	if err != nil {
		return nil, fmt.Errorf("blockfrost: datum hex: %w", err)
	}
	return raw, nil
}

// Tip returns the latest block.
func (b *Backend) Tip(ctx context.Context) (chain.Tip, error) {
	body, err := b.get(ctx, "/blocks/latest")
	if err != nil {
		return chain.Tip{}, err
	}

	var resp struct {
		Slot   uint64 `json:"slot"`
		Hash   string `json:"hash"`
		Height uint64 `json:"height"`
		Time   int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return chain.Tip{}, fmt.Errorf("blockfrost: decoding block: %w", err)
	}
	return chain.Tip{
		Slot:      resp.Slot,
		Hash:      resp.Hash,
		Height:    resp.Height,
		Timestamp: time.Unix(resp.Time, 0).UTC(),
	}, nil
}

// SubmitTx broadcasts raw transaction CBOR via /tx/submit. A 4xx answer
// means the node rejected the transaction; it must not be resubmitted.
func (b *Backend) SubmitTx(ctx context.Context, txCBOR []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tx/submit", bytes.NewReader(txCBOR))
	if err != nil {
		return "", fmt.Errorf("blockfrost: %w", err)
	}
	req.Header.Set("project_id", b.projectID)
	req.Header.Set("User-Agent", version.AgentString())
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	switch {
	case resp.StatusCode == http.StatusOK:
		// The response body is the JSON-quoted tx hash.
		var hash string
		if err := json.Unmarshal(body, &hash); err != nil {
			return "", fmt.Errorf("blockfrost: decoding submit response: %w", err)
		}
		return hash, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%w: HTTP %d: %s", chain.ErrSubmissionRejected, resp.StatusCode, string(body))
	default:
		return "", fmt.Errorf("%w: HTTP %d on submit", chain.ErrBackendUnavailable, resp.StatusCode)
	}
}

// TxConfirmed reports whether the transaction exists on chain.
func (b *Backend) TxConfirmed(ctx context.Context, txHash string) (bool, error) {
	_, err := b.get(ctx, "/txs/"+txHash)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, chain.ErrNotFound)
}

// statusError carries the HTTP status of a failed request.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (b *Backend) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("blockfrost: %w", err)
	}
	req.Header.Set("project_id", b.projectID)
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
		return nil, fmt.Errorf("%w: %s: %w", chain.ErrNotFound, path, &statusError{code: resp.StatusCode, body: string(body)})
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %w", chain.ErrBackendUnavailable, &statusError{code: resp.StatusCode, body: string(body)})
	default:
		return nil, fmt.Errorf("blockfrost: %w", &statusError{code: resp.StatusCode, body: string(body)})
	}
}
