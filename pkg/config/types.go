package config

import "time"

// Config is the root configuration structure
type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	Chain   ChainConfig   `yaml:"chain"`
	Node    NodeConfig    `yaml:"node"`
	Rewards RewardsConfig `yaml:"rewards"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// FeedConfig configures one price feed and its update cycle
type FeedConfig struct {
	Symbol              string        `yaml:"symbol"`               // e.g. "ADA/USD"
	Interval            Duration      `yaml:"interval"`             // update cycle interval
	CycleTimeout        Duration      `yaml:"cycle_timeout"`        // per-cycle deadline
	SourceTimeout       Duration      `yaml:"source_timeout"`       // per-source quote deadline
	Tolerance           string        `yaml:"tolerance"`            // relative delta below which submission is skipped, e.g. "0.005"
	PrecisionMultiplier int64         `yaml:"precision_multiplier"` // fixed-point scale, default 1e6
	RateMethod          string        `yaml:"rate_method"`          // how the base leg composes with the quote leg
	MinSources          int           `yaml:"min_sources"`          // minimum successful sources per group
	AggregationPolicy   string        `yaml:"aggregation_policy"`   // first_success or median
	BaseSources         []AdapterSpec `yaml:"base_sources"`
	QuoteSources        []AdapterSpec `yaml:"quote_sources"`
}

// AdapterSpec configures a single price source instance
type AdapterSpec struct {
	Type    string                 `yaml:"type"`   // generic, binance, coingecko, dexpool, lpnav, inverse
	Name    string                 `yaml:"name"`   // unique name within the feed
	Enabled bool                   `yaml:"enabled"`
	Method  string                 `yaml:"method"` // multiply or divide, how the raw value folds into the rate
	Config  map[string]interface{} `yaml:"config"`
}

// ChainConfig identifies the blockchain access backends
type ChainConfig struct {
	Network   string         `yaml:"network"`    // mainnet or preprod
	Query     BackendConfig  `yaml:"query"`      // primary query backend
	UTxOIndex *BackendConfig `yaml:"utxo_index"` // optional UTxO-indexing backend, routed for UTxO lookups
	Submit    BackendConfig  `yaml:"submit"`     // submission backend
}

// BackendConfig configures one chain access backend
type BackendConfig struct {
	Type      string   `yaml:"type"` // blockfrost, kupo or ogmios
	URL       string   `yaml:"url"`
	ProjectID string   `yaml:"project_id"` // blockfrost auth, supports ${ENV} expansion
	Timeout   Duration `yaml:"timeout"`
}

// NodeConfig holds the node identity material
type NodeConfig struct {
	Mnemonic      string `yaml:"mnemonic"`       // BIP39 mnemonic (or use MnemonicEnv)
	MnemonicEnv   string `yaml:"mnemonic_env"`   // environment variable holding the mnemonic
	OracleAddress string `yaml:"oracle_address"` // script address of the oracle feed
	FeedNFT       string `yaml:"feed_nft"`       // asset id of this node's feed slot
	AggStateNFT   string `yaml:"aggstate_nft"`   // asset id of the aggregated-state slot
	RewardToken   string `yaml:"reward_token"`   // asset id of the reward token
}

// RewardsConfig configures the independent reward collector
type RewardsConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Threshold   int64    `yaml:"threshold"` // whole reward tokens that trigger a sweep
	Destination string   `yaml:"destination"`
	Interval    Duration `yaml:"interval"`
}

// AlertsConfig configures the alert manager
type AlertsConfig struct {
	Cooldown   Duration        `yaml:"cooldown"`
	Thresholds Thresholds      `yaml:"thresholds"`
	Channels   []ChannelConfig `yaml:"channels"`
}

// Thresholds holds alerting thresholds
type Thresholds struct {
	AdaBalance    int64 `yaml:"ada_balance"`    // whole ADA
	RewardBalance int64 `yaml:"reward_balance"` // whole reward tokens
}

// ChannelConfig configures one notification channel
type ChannelConfig struct {
	Type       string `yaml:"type"` // slack, discord or telegram
	WebhookURL string `yaml:"webhook_url"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
