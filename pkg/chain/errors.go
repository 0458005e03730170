package chain

import "errors"

var (
	// ErrQueryTimeout indicates a query backend did not answer within its deadline.
	ErrQueryTimeout = errors.New("chain query timed out")
	// ErrBackendUnavailable indicates the backend could not be reached or returned a server error.
	ErrBackendUnavailable = errors.New("chain backend unavailable")
	// ErrSubmissionRejected indicates the node rejected a submitted transaction.
	// Rejected transactions must be rebuilt, never resubmitted as-is.
	ErrSubmissionRejected = errors.New("transaction rejected by node")
	// ErrNotFound indicates the requested object does not exist on chain.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAssetID indicates a malformed asset identifier.
	ErrInvalidAssetID = errors.New("invalid asset id")
	// ErrNoUTxOIndex indicates a UTxO-index-only operation was requested without one configured.
	ErrNoUTxOIndex = errors.New("no UTxO indexer configured")
	// ErrDatumNotFound indicates a datum could not be resolved by hash.
	ErrDatumNotFound = errors.New("datum not found")
	// ErrConfirmationUnsupported indicates no configured backend can report
	// transaction inclusion.
	ErrConfirmationUnsupported = errors.New("no backend supports confirmation checks")
)
