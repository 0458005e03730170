package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain/blockfrost"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain/kupo"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain/ogmios"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/config"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/aggregator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/alerts"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/keystore"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/rewards"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/sources"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/tx"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/updater"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("push-oracle-node version %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting push-oracle-node",
		"version", version.Version,
		"feed", cfg.Feed.Symbol,
		"network", cfg.Chain.Network)

	if cfg.Metrics.Enabled {
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.Serve(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err.Error())
			}
		}()
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Node failed", "error", err.Error())
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	client, err := buildChainClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("building chain client: %w", err)
	}

	identity, err := buildIdentity(cfg)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}
	logger.Info("Loaded node identity",
		"key_hash", identity.KeyHashHex(),
		"oracle_address", identity.OracleAddress())

	alerter, err := buildAlerter(cfg, logger)
	if err != nil {
		return fmt.Errorf("building alert manager: %w", err)
	}

	probeBackends(client, logger)

	baseGroup, err := buildGroup(cfg, "base", cfg.EnabledBaseSources(), client, logger)
	if err != nil {
		return fmt.Errorf("building base group: %w", err)
	}
	var quoteGroup *aggregator.Group
	if specs := cfg.EnabledQuoteSources(); len(specs) > 0 {
		quoteGroup, err = buildGroup(cfg, "quote", specs, client, logger)
		if err != nil {
			return fmt.Errorf("building quote group: %w", err)
		}
	}

	builder, err := tx.NewCBORBuilder(identity, client, 0, logger)
	if err != nil {
		return fmt.Errorf("building transaction builder: %w", err)
	}

	pair, err := sources.ParsePair(cfg.Feed.Symbol)
	if err != nil {
		return fmt.Errorf("parsing feed symbol: %w", err)
	}
	method, err := sources.ParseRateMethod(cfg.Feed.RateMethod)
	if err != nil {
		return fmt.Errorf("parsing rate method: %w", err)
	}

	feedUpdater, err := updater.New(updater.Config{
		Pair:                 pair,
		Interval:             cfg.Feed.Interval.ToDuration(),
		CycleTimeout:         cfg.Feed.CycleTimeout.ToDuration(),
		Tolerance:            cfg.Feed.ToleranceDecimal(),
		PrecisionMultiplier:  cfg.Feed.PrecisionMultiplier,
		Method:               method,
		AdaAlertThreshold:    cfg.Alerts.Thresholds.AdaBalance,
		RewardToken:          cfg.Node.RewardToken,
		RewardAlertThreshold: cfg.Alerts.Thresholds.RewardBalance,
		ConfirmTimeout:       time.Minute,
		ConfirmInterval:      10 * time.Second,
	}, baseGroup, quoteGroup, builder, client, identity, alerter, logger)
	if err != nil {
		return fmt.Errorf("building feed updater: %w", err)
	}
	if err := feedUpdater.Start(); err != nil {
		return fmt.Errorf("starting feed updater: %w", err)
	}
	defer func() {
		if err := feedUpdater.Stop(); err != nil {
			logger.Error("Stopping feed updater", "error", err.Error())
		}
	}()

	if cfg.Rewards.Enabled {
		collector, err := rewards.NewCollector(rewards.Config{
			RewardToken: cfg.Node.RewardToken,
			Threshold:   cfg.Rewards.Threshold,
			Destination: cfg.Rewards.Destination,
			Interval:    cfg.Rewards.Interval.ToDuration(),
		}, identity, client, builder, client, alerter, logger)
		if err != nil {
			return fmt.Errorf("building reward collector: %w", err)
		}
		if err := collector.Start(); err != nil {
			return fmt.Errorf("starting reward collector: %w", err)
		}
		defer func() {
			if err := collector.Stop(); err != nil {
				logger.Error("Stopping reward collector", "error", err.Error())
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig.String())
	return nil
}

// probeBackends checks chain reachability before entering the loop.
// Failures are reported but not fatal: backends can recover while the
// node keeps cycling.
func probeBackends(client *chain.Client, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tip, err := client.Tip(ctx)
	if err != nil {
		logger.Warn("Chain tip probe failed", "error", err.Error())
		return
	}
	logger.Info("Chain reachable",
		"slot", tip.Slot,
		"height", tip.Height)
}

// buildChainClient wires the configured backends into the routing client.
func buildChainClient(cfg *config.Config, logger *logging.Logger) (*chain.Client, error) {
	query, err := buildQueryBackend(cfg.Chain.Query, cfg.Chain.Network, logger)
	if err != nil {
		return nil, fmt.Errorf("query backend: %w", err)
	}

	var utxoIndex chain.QueryBackend
	if cfg.Chain.UTxOIndex != nil {
		utxoIndex, err = buildQueryBackend(*cfg.Chain.UTxOIndex, cfg.Chain.Network, logger)
		if err != nil {
			return nil, fmt.Errorf("utxo index backend: %w", err)
		}
	}

	var submit chain.SubmitBackend
	switch cfg.Chain.Submit.Type {
	case "ogmios":
		submit, err = ogmios.New(ogmios.Config{URL: cfg.Chain.Submit.URL, Logger: logger})
	case "blockfrost":
		submit, err = blockfrost.New(blockfrost.Config{
			URL:       cfg.Chain.Submit.URL,
			Network:   cfg.Chain.Network,
			ProjectID: cfg.Chain.Submit.ProjectID,
			Timeout:   cfg.Chain.Submit.Timeout.ToDuration(),
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidBackendType, cfg.Chain.Submit.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("submit backend: %w", err)
	}

	return chain.NewClient(query, utxoIndex, submit, logger)
}

func buildQueryBackend(cfg config.BackendConfig, network string, logger *logging.Logger) (chain.QueryBackend, error) {
	switch cfg.Type {
	case "blockfrost":
		return blockfrost.New(blockfrost.Config{
			URL:       cfg.URL,
			Network:   network,
			ProjectID: cfg.ProjectID,
			Timeout:   cfg.Timeout.ToDuration(),
			Logger:    logger,
		})
	case "kupo":
		return kupo.New(kupo.Config{
			URL:     cfg.URL,
			Timeout: cfg.Timeout.ToDuration(),
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidBackendType, cfg.Type)
	}
}

func buildIdentity(cfg *config.Config) (*keystore.Identity, error) {
	mnemonic := cfg.Node.Mnemonic
	if cfg.Node.MnemonicEnv != "" {
		mnemonic = os.Getenv(cfg.Node.MnemonicEnv)
	}
	return keystore.FromMnemonic(keystore.Config{
		Mnemonic:      mnemonic,
		OracleAddress: cfg.Node.OracleAddress,
		FeedNFT:       cfg.Node.FeedNFT,
		AggStateNFT:   cfg.Node.AggStateNFT,
	})
}

func buildAlerter(cfg *config.Config, logger *logging.Logger) (*alerts.Manager, error) {
	notifiers := make([]alerts.Notifier, 0, len(cfg.Alerts.Channels))
	for _, ch := range cfg.Alerts.Channels {
		notifier, err := alerts.NewChannel(ch)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Type, err)
		}
		notifiers = append(notifiers, notifier)
		logger.Info("Configured alert channel", "type", ch.Type)
	}
	return alerts.NewManager(cfg.Alerts.Cooldown.ToDuration(), notifiers, logger), nil
}

// buildGroup instantiates every enabled source spec and wraps them in
// an aggregation group. The logger and chain client travel to the
// sources through their config maps.
func buildGroup(cfg *config.Config, side string, specs []config.AdapterSpec, client *chain.Client, logger *logging.Logger) (*aggregator.Group, error) {
	policy, err := aggregator.ParsePolicy(cfg.Feed.AggregationPolicy)
	if err != nil {
		return nil, err
	}

	built := make([]sources.Source, 0, len(specs))
	for _, spec := range specs {
		if spec.Config == nil {
			spec.Config = make(map[string]interface{})
		}
		if _, ok := spec.Config["symbol"]; !ok {
			spec.Config["symbol"] = cfg.Feed.Symbol
		}
		if spec.Method != "" {
			spec.Config["method"] = spec.Method
		}
		spec.Config["logger"] = logger
		spec.Config["chain"] = client

		source, err := sources.Create(spec.Type, spec.Name, spec.Config)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.Name, err)
		}
		built = append(built, source)
		logger.Info("Initialized price source",
			"group", side,
			"type", spec.Type,
			"name", spec.Name)
	}

	return aggregator.NewGroup(aggregator.GroupConfig{
		Name:          cfg.Feed.Symbol + "/" + side,
		Sources:       built,
		Policy:        policy,
		MinSources:    cfg.Feed.MinSources,
		SourceTimeout: cfg.Feed.SourceTimeout.ToDuration(),
		Logger:        logger,
	})
}
