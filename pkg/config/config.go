// Package config provides configuration loading and validation for the oracle node.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Feed defaults
	if cfg.Feed.Interval.ToDuration() == 0 {
		cfg.Feed.Interval = Duration(60 * 1e9) // 60 seconds
	}
	if cfg.Feed.CycleTimeout.ToDuration() == 0 {
		cfg.Feed.CycleTimeout = cfg.Feed.Interval
	}
	if cfg.Feed.SourceTimeout.ToDuration() == 0 {
		cfg.Feed.SourceTimeout = Duration(10 * 1e9) // 10 seconds
	}
	if cfg.Feed.PrecisionMultiplier == 0 {
		cfg.Feed.PrecisionMultiplier = 1_000_000
	}
	if cfg.Feed.RateMethod == "" {
		cfg.Feed.RateMethod = "multiply"
	}
	if cfg.Feed.MinSources == 0 {
		cfg.Feed.MinSources = 1
	}
	if cfg.Feed.AggregationPolicy == "" {
		cfg.Feed.AggregationPolicy = "first_success"
	}
	if cfg.Feed.Tolerance == "" {
		cfg.Feed.Tolerance = "0"
	}

	// Chain defaults
	if cfg.Chain.Network == "" {
		cfg.Chain.Network = "mainnet"
	}
	if cfg.Chain.Query.Timeout.ToDuration() == 0 {
		cfg.Chain.Query.Timeout = Duration(15 * 1e9)
	}
	if cfg.Chain.UTxOIndex != nil && cfg.Chain.UTxOIndex.Timeout.ToDuration() == 0 {
		cfg.Chain.UTxOIndex.Timeout = Duration(15 * 1e9)
	}
	if cfg.Chain.Submit.Timeout.ToDuration() == 0 {
		cfg.Chain.Submit.Timeout = Duration(30 * 1e9)
	}

	// Rewards defaults
	if cfg.Rewards.Interval.ToDuration() == 0 {
		cfg.Rewards.Interval = Duration(3600 * 1e9) // hourly
	}

	// Alerts defaults
	if cfg.Alerts.Cooldown.ToDuration() == 0 {
		cfg.Alerts.Cooldown = Duration(1800 * 1e9) // 30 minutes
	}
	if cfg.Alerts.Thresholds.AdaBalance == 0 {
		cfg.Alerts.Thresholds.AdaBalance = 50
	}
	if cfg.Alerts.Thresholds.RewardBalance == 0 {
		cfg.Alerts.Thresholds.RewardBalance = 50
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// EnabledBaseSources returns the enabled base-side adapter specs in declared order.
func (c *Config) EnabledBaseSources() []AdapterSpec {
	return enabledSpecs(c.Feed.BaseSources)
}

// EnabledQuoteSources returns the enabled quote-side adapter specs in declared order.
func (c *Config) EnabledQuoteSources() []AdapterSpec {
	return enabledSpecs(c.Feed.QuoteSources)
}

func enabledSpecs(specs []AdapterSpec) []AdapterSpec {
	result := make([]AdapterSpec, 0, len(specs))
	for _, s := range specs {
		if s.Enabled {
			result = append(result, s)
		}
	}
	return result
}

// GetString retrieves a string value from the adapter configuration.
func (sc *AdapterSpec) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a string slice from adapter config.
func (sc *AdapterSpec) GetStringSlice(key string) []string {
	if val, ok := sc.Config[key]; ok {
		if slice, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(slice))
			for _, item := range slice {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return nil
}

// GetInt retrieves an integer from adapter config.
func (sc *AdapterSpec) GetInt(key string, defaultValue int) int {
	if val, ok := sc.Config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean from adapter config.
func (sc *AdapterSpec) GetBool(key string, defaultValue bool) bool {
	if val, ok := sc.Config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}
