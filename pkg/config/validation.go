package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

var validSourceTypes = []string{"generic", "binance", "coingecko", "dexpool", "lpnav", "inverse"}

// Validate checks configuration for errors. Validation failures are the only
// errors that terminate the process; everything after startup degrades and
// alerts instead.
func Validate(cfg *Config) error {
	if err := validateFeedConfig(&cfg.Feed); err != nil {
		return fmt.Errorf("feed config: %w", err)
	}
	if err := validateChainConfig(&cfg.Chain); err != nil {
		return fmt.Errorf("chain config: %w", err)
	}
	if err := validateNodeConfig(&cfg.Node); err != nil {
		return fmt.Errorf("node config: %w", err)
	}
	if cfg.Rewards.Enabled && cfg.Rewards.Destination == "" {
		return fmt.Errorf("rewards config: %w", ErrRewardDestinationRequired)
	}
	for i, ch := range cfg.Alerts.Channels {
		t := strings.ToLower(ch.Type)
		if t != "slack" && t != "discord" && t != "telegram" {
			return fmt.Errorf("alerts config: channel %d: %w: %s", i, ErrInvalidChannelType, ch.Type)
		}
	}
	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func validateFeedConfig(cfg *FeedConfig) error {
	if err := ValidateSymbolFormat(cfg.Symbol); err != nil {
		return err
	}

	tolerance, err := decimal.NewFromString(cfg.Tolerance)
	if err != nil || tolerance.IsNegative() {
		return fmt.Errorf("%w: %q", ErrInvalidTolerance, cfg.Tolerance)
	}

	if cfg.PrecisionMultiplier <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrecisionMultiplier, cfg.PrecisionMultiplier)
	}

	if cfg.RateMethod != "multiply" && cfg.RateMethod != "divide" {
		return fmt.Errorf("%w: %s", ErrInvalidRateMethod, cfg.RateMethod)
	}

	policy := strings.ToLower(cfg.AggregationPolicy)
	if policy != "first_success" && policy != "median" {
		return fmt.Errorf("%w: %s", ErrInvalidAggregationPolicy, cfg.AggregationPolicy)
	}

	baseEnabled := 0
	inverseCount := 0
	names := make(map[string]bool)

	for i, spec := range cfg.BaseSources {
		if err := validateAdapterSpec(&spec, names); err != nil {
			return fmt.Errorf("base source %d (%s): %w", i, spec.Name, err)
		}
		if !spec.Enabled {
			continue
		}
		baseEnabled++
		if spec.Type == "inverse" {
			inverseCount++
		}
	}
	if baseEnabled == 0 {
		return fmt.Errorf("%w", ErrNoBaseSources)
	}
	if inverseCount > 1 {
		return fmt.Errorf("%w: found %d", ErrMultipleInverseSources, inverseCount)
	}

	quoteEnabled := 0
	for i, spec := range cfg.QuoteSources {
		if err := validateAdapterSpec(&spec, names); err != nil {
			return fmt.Errorf("quote source %d (%s): %w", i, spec.Name, err)
		}
		if spec.Type == "inverse" {
			return fmt.Errorf("quote source %d (%s): %w", i, spec.Name, ErrInverseInQuoteGroup)
		}
		if spec.Enabled {
			quoteEnabled++
		}
	}
	if inverseCount > 0 && quoteEnabled == 0 {
		return fmt.Errorf("%w", ErrInverseWithoutQuote)
	}

	return nil
}

func validateAdapterSpec(spec *AdapterSpec, names map[string]bool) error {
	if spec.Name == "" {
		return fmt.Errorf("%w", ErrSourceNameRequired)
	}
	if names[spec.Name] {
		return fmt.Errorf("%w: %s", ErrDuplicateSourceName, spec.Name)
	}
	names[spec.Name] = true

	if spec.Type == "" {
		return fmt.Errorf("%w", ErrSourceTypeRequired)
	}
	typeValid := false
	for _, t := range validSourceTypes {
		if strings.ToLower(spec.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrUnknownSourceType, spec.Type, strings.Join(validSourceTypes, ", "))
	}

	if spec.Method != "" && spec.Method != "multiply" && spec.Method != "divide" {
		return fmt.Errorf("%w: %s", ErrInvalidRateMethod, spec.Method)
	}

	// Non-native-paired LP pools are a configuration error; reject at startup
	// rather than repeatedly at runtime.
	if strings.ToLower(spec.Type) == "lpnav" {
		assets := spec.GetStringSlice("pool_assets")
		hasNative := false
		for _, a := range assets {
			if a == "lovelace" {
				hasNative = true
				break
			}
		}
		if !hasNative {
			return fmt.Errorf("%w: %v", ErrUnsupportedPoolComposition, assets)
		}
	}

	return nil
}

func validateChainConfig(cfg *ChainConfig) error {
	if cfg.Query.URL == "" {
		return fmt.Errorf("%w", ErrNoQueryBackend)
	}
	if err := validateBackendType(cfg.Query.Type, "blockfrost", "kupo"); err != nil {
		return fmt.Errorf("query backend: %w", err)
	}
	if cfg.UTxOIndex != nil {
		if err := validateBackendType(cfg.UTxOIndex.Type, "kupo"); err != nil {
			return fmt.Errorf("utxo_index backend: %w", err)
		}
	}
	if cfg.Submit.URL == "" {
		return fmt.Errorf("%w", ErrNoSubmitBackend)
	}
	if err := validateBackendType(cfg.Submit.Type, "blockfrost", "ogmios"); err != nil {
		return fmt.Errorf("submit backend: %w", err)
	}
	return nil
}

func validateBackendType(backendType string, allowed ...string) error {
	t := strings.ToLower(backendType)
	for _, a := range allowed {
		if t == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidBackendType, backendType, strings.Join(allowed, ", "))
}

func validateNodeConfig(cfg *NodeConfig) error {
	if cfg.Mnemonic == "" && cfg.MnemonicEnv == "" {
		return fmt.Errorf("%w", ErrMnemonicRequired)
	}
	if cfg.Mnemonic == "" && cfg.MnemonicEnv != "" {
		if os.Getenv(cfg.MnemonicEnv) == "" {
			return fmt.Errorf("%w: %s", ErrMnemonicEnvNotSet, cfg.MnemonicEnv)
		}
	}
	if cfg.OracleAddress == "" {
		return fmt.Errorf("%w", ErrOracleAddressRequired)
	}
	if cfg.FeedNFT == "" {
		return fmt.Errorf("%w", ErrFeedNFTRequired)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}

// ValidateSymbolFormat checks if a symbol is in valid BASE/QUOTE format.
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w", ErrInvalidSymbolFormat)
	}
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}
	return nil
}

// Tolerance returns the parsed delta tolerance. Validate must have accepted
// the config before this is called.
func (c *FeedConfig) ToleranceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.Tolerance)
	if err != nil {
		return decimal.Zero
	}
	return d
}
