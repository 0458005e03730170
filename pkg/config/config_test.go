package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// validConfig returns a config that passes validation; tests mutate it
// to exercise individual rules.
func validConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			Symbol:              "ADA/USD",
			Interval:            Duration(60 * time.Second),
			CycleTimeout:        Duration(60 * time.Second),
			SourceTimeout:       Duration(10 * time.Second),
			Tolerance:           "0.005",
			PrecisionMultiplier: 1_000_000,
			RateMethod:          "multiply",
			MinSources:          1,
			AggregationPolicy:   "median",
			BaseSources: []AdapterSpec{
				{Type: "binance", Name: "binance", Enabled: true},
				{Type: "generic", Name: "kraken", Enabled: true},
			},
			QuoteSources: []AdapterSpec{
				{Type: "coingecko", Name: "coingecko", Enabled: true},
			},
		},
		Chain: ChainConfig{
			Network: "mainnet",
			Query:   BackendConfig{Type: "blockfrost", URL: "https://cardano-mainnet.blockfrost.io/api/v0", ProjectID: "proj"},
			Submit:  BackendConfig{Type: "ogmios", URL: "ws://localhost:1337"},
		},
		Node: NodeConfig{
			Mnemonic:      "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
			OracleAddress: "addr1_oracle",
			FeedNFT:       "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa6665656401",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_PROJECT_ID", "secret-project")
	path := writeConfig(t, `
feed:
  symbol: ADA/USD
  interval: 30s
  base_sources:
    - type: binance
      name: binance
      enabled: true
chain:
  query:
    type: blockfrost
    url: https://cardano-mainnet.blockfrost.io/api/v0
    project_id: ${TEST_PROJECT_ID}
  submit:
    type: ogmios
    url: ws://localhost:1337
node:
  mnemonic_env: ORACLE_MNEMONIC
  oracle_address: addr1_oracle
  feed_nft: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa6665656401
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-project", cfg.Chain.Query.ProjectID)
	assert.Equal(t, 30*time.Second, cfg.Feed.Interval.ToDuration())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
feed:
  symbol: ADA/USD
chain:
  query:
    type: blockfrost
    url: https://example.com
  submit:
    type: blockfrost
    url: https://example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Feed.Interval.ToDuration())
	assert.Equal(t, cfg.Feed.Interval, cfg.Feed.CycleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Feed.SourceTimeout.ToDuration())
	assert.Equal(t, int64(1_000_000), cfg.Feed.PrecisionMultiplier)
	assert.Equal(t, "multiply", cfg.Feed.RateMethod)
	assert.Equal(t, "first_success", cfg.Feed.AggregationPolicy)
	assert.Equal(t, "0", cfg.Feed.Tolerance)
	assert.Equal(t, "mainnet", cfg.Chain.Network)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.Cooldown.ToDuration())
	assert.Equal(t, int64(50), cfg.Alerts.Thresholds.AdaBalance)
	assert.Equal(t, time.Hour, cfg.Rewards.Interval.ToDuration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateAcceptsFullConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateFeedRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"bad symbol", func(c *Config) { c.Feed.Symbol = "ADAUSD" }, ErrInvalidSymbolFormat},
		{"negative tolerance", func(c *Config) { c.Feed.Tolerance = "-0.1" }, ErrInvalidTolerance},
		{"garbage tolerance", func(c *Config) { c.Feed.Tolerance = "five percent" }, ErrInvalidTolerance},
		{"zero precision", func(c *Config) { c.Feed.PrecisionMultiplier = -1 }, ErrInvalidPrecisionMultiplier},
		{"bad rate method", func(c *Config) { c.Feed.RateMethod = "add" }, ErrInvalidRateMethod},
		{"bad policy", func(c *Config) { c.Feed.AggregationPolicy = "average" }, ErrInvalidAggregationPolicy},
		{"no base sources", func(c *Config) { c.Feed.BaseSources = nil }, ErrNoBaseSources},
		{"all base sources disabled", func(c *Config) {
			for i := range c.Feed.BaseSources {
				c.Feed.BaseSources[i].Enabled = false
			}
		}, ErrNoBaseSources},
		{"missing source name", func(c *Config) { c.Feed.BaseSources[0].Name = "" }, ErrSourceNameRequired},
		{"missing source type", func(c *Config) { c.Feed.BaseSources[0].Type = "" }, ErrSourceTypeRequired},
		{"unknown source type", func(c *Config) { c.Feed.BaseSources[0].Type = "oracle" }, ErrUnknownSourceType},
		{"duplicate name", func(c *Config) { c.Feed.BaseSources[1].Name = "binance" }, ErrDuplicateSourceName},
		{"two inverse sources", func(c *Config) {
			c.Feed.BaseSources = append(c.Feed.BaseSources,
				AdapterSpec{Type: "inverse", Name: "inv1", Enabled: true},
				AdapterSpec{Type: "inverse", Name: "inv2", Enabled: true})
		}, ErrMultipleInverseSources},
		{"inverse on quote side", func(c *Config) {
			c.Feed.QuoteSources = append(c.Feed.QuoteSources,
				AdapterSpec{Type: "inverse", Name: "inv", Enabled: true})
		}, ErrInverseInQuoteGroup},
		{"inverse without quote sources", func(c *Config) {
			c.Feed.QuoteSources = nil
			c.Feed.BaseSources = append(c.Feed.BaseSources,
				AdapterSpec{Type: "inverse", Name: "inv", Enabled: true})
		}, ErrInverseWithoutQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.wantErr)
		})
	}
}

func TestValidateLPPoolComposition(t *testing.T) {
	cfg := validConfig()
	cfg.Feed.BaseSources = append(cfg.Feed.BaseSources, AdapterSpec{
		Type:    "lpnav",
		Name:    "lp",
		Enabled: true,
		Config: map[string]interface{}{
			"pool_assets": []interface{}{"policy.token_a", "policy.token_b"},
		},
	})
	assert.ErrorIs(t, Validate(cfg), ErrUnsupportedPoolComposition)

	cfg.Feed.BaseSources[len(cfg.Feed.BaseSources)-1].Config["pool_assets"] =
		[]interface{}{"lovelace", "policy.token_a"}
	assert.NoError(t, Validate(cfg))
}

func TestValidateChainRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no query backend", func(c *Config) { c.Chain.Query.URL = "" }, ErrNoQueryBackend},
		{"bad query type", func(c *Config) { c.Chain.Query.Type = "ogmios" }, ErrInvalidBackendType},
		{"no submit backend", func(c *Config) { c.Chain.Submit.URL = "" }, ErrNoSubmitBackend},
		{"bad submit type", func(c *Config) { c.Chain.Submit.Type = "kupo" }, ErrInvalidBackendType},
		{"bad index type", func(c *Config) {
			c.Chain.UTxOIndex = &BackendConfig{Type: "blockfrost", URL: "https://example.com"}
		}, ErrInvalidBackendType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.wantErr)
		})
	}
}

func TestValidateNodeRules(t *testing.T) {
	cfg := validConfig()
	cfg.Node.Mnemonic = ""
	assert.ErrorIs(t, Validate(cfg), ErrMnemonicRequired)

	cfg = validConfig()
	cfg.Node.OracleAddress = ""
	assert.ErrorIs(t, Validate(cfg), ErrOracleAddressRequired)

	cfg = validConfig()
	cfg.Node.FeedNFT = ""
	assert.ErrorIs(t, Validate(cfg), ErrFeedNFTRequired)
}

func TestValidateRewardsAndChannels(t *testing.T) {
	cfg := validConfig()
	cfg.Rewards = RewardsConfig{Enabled: true, Threshold: 50}
	assert.ErrorIs(t, Validate(cfg), ErrRewardDestinationRequired)

	cfg = validConfig()
	cfg.Alerts.Channels = []ChannelConfig{{Type: "pager", WebhookURL: "https://example.com"}}
	assert.ErrorIs(t, Validate(cfg), ErrInvalidChannelType)
}

func TestToleranceDecimal(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.005", cfg.Feed.ToleranceDecimal().String())

	cfg.Feed.Tolerance = ""
	assert.True(t, cfg.Feed.ToleranceDecimal().IsZero())
}

func TestAdapterSpecAccessors(t *testing.T) {
	spec := AdapterSpec{Config: map[string]interface{}{
		"url":         "https://example.com",
		"retries":     3,
		"secure":      true,
		"pool_assets": []interface{}{"lovelace", "policy.token"},
	}}

	assert.Equal(t, "https://example.com", spec.GetString("url", ""))
	assert.Equal(t, "fallback", spec.GetString("missing", "fallback"))
	assert.Equal(t, 3, spec.GetInt("retries", 0))
	assert.Equal(t, 7, spec.GetInt("missing", 7))
	assert.True(t, spec.GetBool("secure", false))
	assert.Equal(t, []string{"lovelace", "policy.token"}, spec.GetStringSlice("pool_assets"))
	assert.Nil(t, spec.GetStringSlice("missing"))
}
