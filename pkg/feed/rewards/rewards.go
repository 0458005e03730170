// Package rewards sweeps accumulated reward tokens from the feed UTxO
// to a payout address once they cross a configured threshold. It runs
// on its own schedule, independent of the update cycle.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/alerts"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/keystore"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/tx"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
)

var (
	// ErrMissingRewardToken indicates the node config does not name a
	// reward token asset.
	ErrMissingRewardToken = errors.New("missing reward token asset id")

	// ErrMissingDestination indicates no payout address is configured.
	ErrMissingDestination = errors.New("missing reward destination address")
)

// ChainReader is the chain access the collector needs.
type ChainReader interface {
	UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error)
}

// Submitter broadcasts a signed transaction.
type Submitter interface {
	SubmitTx(ctx context.Context, txBytes []byte) (string, error)
}

// Config holds collector settings.
type Config struct {
	RewardToken string        // asset id of the reward token
	Threshold   int64         // minimum balance that triggers a sweep
	Destination string        // payout address
	Interval    time.Duration // how often the balance is checked
}

// Collector periodically checks the feed UTxO's reward balance and
// sweeps it when it reaches the threshold.
type Collector struct {
	cfg      Config
	identity *keystore.Identity
	reader   ChainReader
	builder  tx.Builder
	submit   Submitter
	alerter  *alerts.Manager
	logger   *logging.Logger

	scheduler gocron.Scheduler
}

// NewCollector creates a reward collector.
func NewCollector(cfg Config, identity *keystore.Identity, reader ChainReader, builder tx.Builder, submit Submitter, alerter *alerts.Manager, logger *logging.Logger) (*Collector, error) {
	if cfg.RewardToken == "" {
		return nil, ErrMissingRewardToken
	}
	if cfg.Destination == "" {
		return nil, ErrMissingDestination
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	if identity == nil {
		return nil, fmt.Errorf("rewards: identity is required")
	}
	if reader == nil || builder == nil || submit == nil {
		return nil, fmt.Errorf("rewards: reader, builder and submitter are required")
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Collector{
		cfg:      cfg,
		identity: identity,
		reader:   reader,
		builder:  builder,
		submit:   submit,
		alerter:  alerter,
		logger:   logger,
	}, nil
}

// Start schedules Collect on the configured interval and returns
// immediately.
func (c *Collector) Start() error {
	interval := c.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("rewards: creating scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := c.Collect(context.Background()); err != nil {
				c.logger.Error("Reward collection failed", "error", err.Error())
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("rewards: scheduling collection: %w", err)
	}
	scheduler.Start()
	c.scheduler = scheduler
	c.logger.Info("Reward collector started",
		"threshold", c.cfg.Threshold,
		"interval", interval.String())
	return nil
}

// Stop halts the collection schedule.
func (c *Collector) Stop() error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Shutdown()
}

// Collect sweeps the reward balance if it has reached the threshold.
// It reports whether a sweep transaction was submitted.
func (c *Collector) Collect(ctx context.Context) (bool, error) {
	balance, err := c.balance(ctx)
	if err != nil {
		return false, fmt.Errorf("rewards: reading balance: %w", err)
	}
	if balance < c.cfg.Threshold {
		c.logger.Debug("Reward balance below threshold",
			"balance", balance,
			"threshold", c.cfg.Threshold)
		return false, nil
	}

	signed, err := c.builder.BuildSweep(ctx, c.cfg.Destination, c.cfg.RewardToken, balance)
	if err != nil {
		return false, fmt.Errorf("rewards: building sweep: %w", err)
	}

	hash, err := c.submit.SubmitTx(ctx, signed.CBOR)
	if err != nil {
		return false, fmt.Errorf("rewards: submitting sweep: %w", err)
	}

	c.logger.Info("Collected rewards",
		"amount", balance,
		"destination", c.cfg.Destination,
		"tx_hash", hash)
	if c.alerter != nil {
		c.alerter.Emit(ctx, alerts.Event{
			Kind:     alerts.KindRewardCollection,
			Severity: alerts.SeverityInfo,
			Feed:     c.identity.FeedNFT(),
			Message:  fmt.Sprintf("swept %d reward tokens in %s", balance, hash),
			At:       time.Now().UTC(),
		})
	}
	return true, nil
}

// balance reads the reward token amount currently sitting on the feed
// UTxO.
func (c *Collector) balance(ctx context.Context) (int64, error) {
	utxos, err := c.reader.UTxOsWithUnit(ctx, c.identity.OracleAddress(), c.identity.FeedNFT())
	if err != nil {
		return 0, err
	}
	var total int64
	for _, utxo := range utxos {
		total += utxo.Value.AmountOf(c.cfg.RewardToken)
	}
	return total, nil
}
