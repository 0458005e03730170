// Package config provides configuration loading and validation for the oracle node.
package config

import "errors"

var (
	// ErrInvalidSymbolFormat indicates that the feed symbol is not BASE/QUOTE.
	ErrInvalidSymbolFormat = errors.New("feed symbol must be in BASE/QUOTE format")
	// ErrInvalidTolerance indicates that the tolerance is not a non-negative decimal.
	ErrInvalidTolerance = errors.New("tolerance must be a non-negative decimal")
	// ErrInvalidPrecisionMultiplier indicates a non-positive precision multiplier.
	ErrInvalidPrecisionMultiplier = errors.New("precision_multiplier must be positive")
	// ErrInvalidRateMethod indicates an unknown rate calculation method.
	ErrInvalidRateMethod = errors.New("rate method must be 'multiply' or 'divide'")
	// ErrInvalidAggregationPolicy indicates an unknown aggregation policy.
	ErrInvalidAggregationPolicy = errors.New("aggregation_policy must be 'first_success' or 'median'")
	// ErrNoBaseSources indicates that no base-side price source is enabled.
	ErrNoBaseSources = errors.New("at least one base price source must be enabled")
	// ErrSourceNameRequired indicates that an adapter spec is missing a name.
	ErrSourceNameRequired = errors.New("source name must be specified")
	// ErrSourceTypeRequired indicates that an adapter spec is missing a type.
	ErrSourceTypeRequired = errors.New("source type must be specified")
	// ErrUnknownSourceType indicates an unknown adapter type.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrDuplicateSourceName indicates two adapters sharing one name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrMultipleInverseSources indicates more than one inverse source configured.
	ErrMultipleInverseSources = errors.New("at most one inverse source may be configured")
	// ErrInverseInQuoteGroup indicates an inverse source on the quote side.
	ErrInverseInQuoteGroup = errors.New("inverse sources are defined in terms of the quote rate and cannot be quote sources")
	// ErrInverseWithoutQuote indicates an inverse source without quote sources to resolve against.
	ErrInverseWithoutQuote = errors.New("inverse source requires at least one quote source")
	// ErrUnsupportedPoolComposition indicates an LP pool that is not paired with the native currency.
	ErrUnsupportedPoolComposition = errors.New("lp pool assets must include lovelace")
	// ErrNoQueryBackend indicates that no query-capable chain backend is configured.
	ErrNoQueryBackend = errors.New("at least one query backend must be configured")
	// ErrNoSubmitBackend indicates that no submission-capable chain backend is configured.
	ErrNoSubmitBackend = errors.New("a submission backend must be configured")
	// ErrInvalidBackendType indicates an unknown chain backend type.
	ErrInvalidBackendType = errors.New("invalid chain backend type")
	// ErrMnemonicRequired indicates that no signing mnemonic is configured.
	ErrMnemonicRequired = errors.New("either mnemonic or mnemonic_env must be specified")
	// ErrMnemonicEnvNotSet indicates that the mnemonic environment variable is not set.
	ErrMnemonicEnvNotSet = errors.New("mnemonic environment variable not set")
	// ErrOracleAddressRequired indicates that the oracle address is missing.
	ErrOracleAddressRequired = errors.New("oracle_address must be specified")
	// ErrFeedNFTRequired indicates that the feed slot asset id is missing.
	ErrFeedNFTRequired = errors.New("feed_nft must be specified")
	// ErrRewardDestinationRequired indicates a reward collector without destination.
	ErrRewardDestinationRequired = errors.New("rewards destination must be specified when rewards are enabled")
	// ErrInvalidChannelType indicates an unknown notification channel type.
	ErrInvalidChannelType = errors.New("invalid notification channel type")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
