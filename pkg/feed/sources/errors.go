// Package sources provides price source implementations for every supported
// venue type: generic HTTP endpoints, named exchanges, on-chain DEX pools,
// LP token NAV pricing, and rate inversion.
package sources

import "errors"

var (
	// ErrSourceUnavailable indicates a network failure, timeout, or server error.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceDataInvalid indicates a malformed response or a missing field
	// at the expected extraction path.
	ErrSourceDataInvalid = errors.New("source data invalid")
	// ErrSourceAuth indicates a rejected credential.
	ErrSourceAuth = errors.New("source authentication failed")
	// ErrInvalidConfig indicates the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid source configuration")
	// ErrInvalidSymbolFormat indicates a symbol not in BASE/QUOTE format.
	ErrInvalidSymbolFormat = errors.New("symbol must be in BASE/QUOTE format")
	// ErrInvalidRateMethod indicates an unrecognized rate calculation method.
	ErrInvalidRateMethod = errors.New("rate method must be multiply or divide")
	// ErrQuoteRateNotSet indicates a quote-dependent source was queried before
	// the quote-currency rate was resolved this cycle.
	ErrQuoteRateNotSet = errors.New("quote rate not resolved yet")
	// ErrPoolNotFound indicates no pool UTxO matched the configured assets.
	ErrPoolNotFound = errors.New("pool UTxO not found")
	// ErrAmbiguousPool indicates more than one UTxO matched where exactly one was expected.
	ErrAmbiguousPool = errors.New("ambiguous pool UTxO")
	// ErrZeroLiquidity indicates a pool with an empty reserve or supply.
	ErrZeroLiquidity = errors.New("zero liquidity in pool")
	// ErrUnsupportedPoolComposition indicates a pool not paired against the
	// native currency, which NAV pricing does not support.
	ErrUnsupportedPoolComposition = errors.New("pool is not native-currency paired")
	// ErrDatumMissing indicates a pool UTxO without the expected datum.
	ErrDatumMissing = errors.New("pool datum missing")
	// ErrUnknownSourceType indicates an unregistered source type.
	ErrUnknownSourceType = errors.New("unknown source type")
)
