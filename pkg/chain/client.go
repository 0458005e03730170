package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
)

// QueryBackend answers read-only chain state queries.
type QueryBackend interface {
	// UTxOsAt returns all unspent outputs at the given address.
	UTxOsAt(ctx context.Context, address string) ([]UTxO, error)

	// UTxOsWithUnit returns unspent outputs at address that carry the given unit.
	UTxOsWithUnit(ctx context.Context, address, unit string) ([]UTxO, error)

	// DatumByHash resolves a datum to its raw CBOR bytes.
	DatumByHash(ctx context.Context, hash string) ([]byte, error)

	// Tip returns the most recent block.
	Tip(ctx context.Context) (Tip, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}

// SubmitBackend broadcasts signed transactions.
type SubmitBackend interface {
	// SubmitTx broadcasts raw transaction CBOR and returns the transaction hash.
	// A ErrSubmissionRejected result is terminal for that transaction; callers
	// must rebuild before trying again.
	SubmitTx(ctx context.Context, txCBOR []byte) (string, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}

// TxStatusChecker is implemented by backends that can report whether a
// transaction made it on chain. Submission-only backends need not.
type TxStatusChecker interface {
	TxConfirmed(ctx context.Context, txHash string) (bool, error)
}

// Client routes chain access across the configured backends. UTxO and datum
// lookups go to the dedicated indexer when one is configured, everything else
// to the primary query backend. Submission always uses the submit backend so
// a read outage and a broadcast outage stay independent failure domains.
type Client struct {
	query     QueryBackend
	utxoIndex QueryBackend
	submit    SubmitBackend
	logger    *logging.Logger
}

// NewClient creates a chain client. utxoIndex may be nil.
func NewClient(query QueryBackend, utxoIndex QueryBackend, submit SubmitBackend, logger *logging.Logger) (*Client, error) {
	if query == nil {
		return nil, errors.New("query backend is required")
	}
	if submit == nil {
		return nil, errors.New("submit backend is required")
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Client{
		query:     query,
		utxoIndex: utxoIndex,
		submit:    submit,
		logger:    logger,
	}, nil
}

// utxoBackend picks the backend serving UTxO and datum reads.
func (c *Client) utxoBackend() QueryBackend {
	if c.utxoIndex != nil {
		return c.utxoIndex
	}
	return c.query
}

// UTxOsAt returns the unspent outputs at an address.
func (c *Client) UTxOsAt(ctx context.Context, address string) ([]UTxO, error) {
	backend := c.utxoBackend()
	utxos, err := backend.UTxOsAt(ctx, address)
	if err != nil {
		metrics.RecordBackendRequest(backend.Name(), "utxos_at", "error")
		return nil, wrapQueryErr(err, "utxos at %s", address)
	}
	metrics.RecordBackendRequest(backend.Name(), "utxos_at", "ok")
	return utxos, nil
}

// UTxOsWithUnit returns the unspent outputs at an address carrying unit.
func (c *Client) UTxOsWithUnit(ctx context.Context, address, unit string) ([]UTxO, error) {
	backend := c.utxoBackend()
	utxos, err := backend.UTxOsWithUnit(ctx, address, unit)
	if err != nil {
		metrics.RecordBackendRequest(backend.Name(), "utxos_with_unit", "error")
		return nil, wrapQueryErr(err, "utxos at %s with unit %s", address, unit)
	}
	metrics.RecordBackendRequest(backend.Name(), "utxos_with_unit", "ok")
	return utxos, nil
}

// DatumByHash resolves a datum by hash. Inline datums on the UTxO itself
// should be preferred; this is the fallback for hash-only outputs.
func (c *Client) DatumByHash(ctx context.Context, hash string) ([]byte, error) {
	backend := c.utxoBackend()
	raw, err := backend.DatumByHash(ctx, hash)
	if err != nil {
		metrics.RecordBackendRequest(backend.Name(), "datum", "error")
		return nil, wrapQueryErr(err, "datum %s", hash)
	}
	metrics.RecordBackendRequest(backend.Name(), "datum", "ok")
	return raw, nil
}

// Tip returns the current chain tip from the primary query backend.
func (c *Client) Tip(ctx context.Context) (Tip, error) {
	tip, err := c.query.Tip(ctx)
	if err != nil {
		metrics.RecordBackendRequest(c.query.Name(), "tip", "error")
		return Tip{}, wrapQueryErr(err, "chain tip")
	}
	metrics.RecordBackendRequest(c.query.Name(), "tip", "ok")
	return tip, nil
}

// SubmitTx broadcasts a signed transaction. Rejections are returned wrapped
// in ErrSubmissionRejected and are never retried here.
func (c *Client) SubmitTx(ctx context.Context, txCBOR []byte) (string, error) {
	hash, err := c.submit.SubmitTx(ctx, txCBOR)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrSubmissionRejected) {
			status = "rejected"
		}
		metrics.RecordBackendRequest(c.submit.Name(), "submit", status)
		return "", err
	}
	metrics.RecordBackendRequest(c.submit.Name(), "submit", "ok")
	c.logger.Info("Transaction submitted", "tx_hash", hash, "backend", c.submit.Name())
	return hash, nil
}

// TxConfirmed reports whether a transaction has been included in a block.
// It prefers a status-capable submit backend, then the query backends, and
// returns ErrConfirmationUnsupported if no backend can answer.
func (c *Client) TxConfirmed(ctx context.Context, txHash string) (bool, error) {
	checker, name := c.statusChecker()
	if checker == nil {
		return false, ErrConfirmationUnsupported
	}
	confirmed, err := checker.TxConfirmed(ctx, txHash)
	if err != nil {
		metrics.RecordBackendRequest(name, "tx_confirmed", "error")
		return false, wrapQueryErr(err, "confirmation of %s", txHash)
	}
	metrics.RecordBackendRequest(name, "tx_confirmed", "ok")
	return confirmed, nil
}

func (c *Client) statusChecker() (TxStatusChecker, string) {
	if checker, ok := c.submit.(TxStatusChecker); ok {
		return checker, c.submit.Name()
	}
	if checker, ok := c.query.(TxStatusChecker); ok {
		return checker, c.query.Name()
	}
	if c.utxoIndex != nil {
		if checker, ok := c.utxoIndex.(TxStatusChecker); ok {
			return checker, c.utxoIndex.Name()
		}
	}
	return nil, ""
}

func wrapQueryErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
