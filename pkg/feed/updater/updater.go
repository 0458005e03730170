// Package updater drives the periodic feed update cycle: poll the
// aggregation groups, compute the final rate, and push it on chain when
// it moved beyond the configured tolerance.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/aggregator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/alerts"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/calculator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/keystore"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/sources"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/tx"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
)

// State names the phase the update cycle is currently in.
type State string

const (
	StateIdle        State = "idle"
	StatePolling     State = "polling"
	StateAggregating State = "aggregating"
	StateSubmitting  State = "submitting"
	StateFaulted     State = "faulted"
)

// alertDeliveryTimeout bounds notifier delivery for fault alerts, which
// outlive the cycle context that produced them.
const alertDeliveryTimeout = 10 * time.Second

var (
	// ErrNoBaseGroup indicates the updater was built without a base
	// aggregation group.
	ErrNoBaseGroup = errors.New("base aggregation group is required")

	// ErrCycleOverrun indicates a cycle was abandoned because it
	// exceeded its timeout budget.
	ErrCycleOverrun = errors.New("update cycle exceeded its timeout budget")
)

// ChainAccess is the chain surface the updater uses. *chain.Client
// satisfies it.
type ChainAccess interface {
	UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error)
	SubmitTx(ctx context.Context, txBytes []byte) (string, error)
	TxConfirmed(ctx context.Context, txHash string) (bool, error)
}

// Config holds the per-feed cycle settings.
type Config struct {
	Pair                sources.Pair
	Interval            time.Duration
	CycleTimeout        time.Duration
	Tolerance           decimal.Decimal // relative delta below which submission is skipped
	PrecisionMultiplier int64
	Method              sources.RateMethod

	// AdaAlertThreshold raises a low-balance alert when the feed UTxO
	// holds fewer whole ADA than this. Zero disables the check.
	AdaAlertThreshold int64

	// RewardToken and RewardAlertThreshold do the same for the reward
	// token balance on the feed UTxO.
	RewardToken          string
	RewardAlertThreshold int64

	// ConfirmTimeout bounds post-submission confirmation polling.
	// Zero disables polling entirely.
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
}

// Updater runs the cycle for one feed. Cycles never overlap: the
// scheduler reschedules a tick that fires while the previous cycle is
// still running.
type Updater struct {
	cfg      Config
	base     *aggregator.Group
	quote    *aggregator.Group // nil when the feed has no quote leg
	builder  tx.Builder
	chain    ChainAccess
	identity *keystore.Identity
	alerter  *alerts.Manager
	logger   *logging.Logger

	mu    sync.Mutex
	state State
	last  *calculator.FinalRate

	scheduler gocron.Scheduler
}

// New creates a feed updater.
func New(cfg Config, base, quote *aggregator.Group, builder tx.Builder, chainAccess ChainAccess, identity *keystore.Identity, alerter *alerts.Manager, logger *logging.Logger) (*Updater, error) {
	if base == nil {
		return nil, ErrNoBaseGroup
	}
	if builder == nil || chainAccess == nil || identity == nil {
		return nil, fmt.Errorf("updater: builder, chain access and identity are required")
	}
	if cfg.PrecisionMultiplier <= 0 {
		cfg.PrecisionMultiplier = calculator.DefaultPrecisionMultiplier
	}
	if cfg.ConfirmTimeout > 0 && cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Updater{
		cfg:      cfg,
		base:     base,
		quote:    quote,
		builder:  builder,
		chain:    chainAccess,
		identity: identity,
		alerter:  alerter,
		logger:   logger,
		state:    StateIdle,
	}, nil
}

// State reports the current cycle phase.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// LastSubmitted returns the rate of the most recent successful
// submission, or nil before the first one.
func (u *Updater) LastSubmitted() *calculator.FinalRate {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return nil
	}
	rate := *u.last
	return &rate
}

// Start schedules the cycle on the configured interval and returns
// immediately. Stop shuts the schedule down.
func (u *Updater) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("updater: creating scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(u.cfg.Interval),
		gocron.NewTask(func() {
			if err := u.RunCycle(context.Background()); err != nil {
				u.logger.Error("Update cycle failed",
					"feed", u.cfg.Pair.String(),
					"error", err.Error())
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("updater: scheduling cycle: %w", err)
	}
	scheduler.Start()
	u.scheduler = scheduler
	u.logger.Info("Feed updater started",
		"feed", u.cfg.Pair.String(),
		"interval", u.cfg.Interval.String())
	return nil
}

// Stop halts the periodic schedule. A cycle in flight finishes.
func (u *Updater) Stop() error {
	if u.scheduler == nil {
		return nil
	}
	return u.scheduler.Shutdown()
}

// RunCycle executes one full update cycle. Any failure faults the
// cycle, raises an alert, and leaves the updater idle for the next
// tick.
func (u *Updater) RunCycle(ctx context.Context) error {
	if u.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.CycleTimeout)
		defer cancel()
	}

	err := u.runCycle(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrCycleOverrun, err)
		}
		phase := u.State()
		u.setState(StateFaulted)
		metrics.RecordCycle(u.cfg.Pair.String(), "faulted")
		u.raiseAlert(phase, err)
	}
	u.setState(StateIdle)
	return err
}

func (u *Updater) runCycle(ctx context.Context) error {
	started := time.Now()
	u.setState(StatePolling)

	// Quote leg resolves first so quote-dependent base sources (the
	// inverse source, LP NAV conversion) can observe it.
	quoteRate := decimal.NewFromInt(1)
	if u.quote != nil {
		resolved, err := u.quote.Resolve(ctx)
		if err != nil {
			return fmt.Errorf("resolving quote group: %w", err)
		}
		quoteRate = resolved
	}
	for _, src := range u.base.Sources() {
		if dep, ok := src.(sources.QuoteDependent); ok {
			dep.SetQuoteRate(quoteRate)
		}
	}

	baseRate, err := u.base.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving base group: %w", err)
	}

	u.setState(StateAggregating)
	rate, err := calculator.Compute(u.cfg.Pair, baseRate, quoteRate, u.cfg.Method, u.cfg.PrecisionMultiplier)
	if err != nil {
		return fmt.Errorf("computing final rate: %w", err)
	}

	if u.withinTolerance(rate) {
		u.logger.Info("Rate within tolerance, skipping submission",
			"feed", u.cfg.Pair.String(),
			"rate", rate.Raw.String())
		metrics.RecordCycle(u.cfg.Pair.String(), "skipped")
		return nil
	}

	u.setState(StateSubmitting)
	signed, err := u.builder.BuildUpdate(ctx, rate)
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	hash, err := u.chain.SubmitTx(ctx, signed.CBOR)
	if err != nil {
		metrics.RecordSubmission(u.cfg.Pair.String(), "failed")
		return fmt.Errorf("submitting update: %w", err)
	}

	metrics.RecordSubmission(u.cfg.Pair.String(), "submitted")
	metrics.RecordCycle(u.cfg.Pair.String(), "submitted")
	metrics.LastSubmittedRate.WithLabelValues(u.cfg.Pair.String()).Set(float64(rate.ScaledInt()))
	u.setLast(rate)
	u.logger.Info("Submitted rate update",
		"feed", u.cfg.Pair.String(),
		"rate", rate.Raw.String(),
		"scaled", rate.ScaledInt(),
		"tx_hash", hash,
		"cycle_duration", time.Since(started).String())

	if u.cfg.ConfirmTimeout > 0 {
		u.awaitConfirmation(ctx, hash)
	}
	u.checkBalance(ctx)
	return nil
}

// withinTolerance reports whether the new rate is close enough to the
// last submitted one to skip the on-chain write.
func (u *Updater) withinTolerance(rate calculator.FinalRate) bool {
	last := u.LastSubmitted()
	if last == nil || last.Raw.IsZero() {
		return false
	}
	delta := rate.Raw.Sub(last.Raw).Abs().Div(last.Raw.Abs())
	return delta.LessThanOrEqual(u.cfg.Tolerance)
}

// awaitConfirmation polls for transaction inclusion. Backends that
// cannot report inclusion are tolerated: the submission already
// succeeded, confirmation is best effort.
func (u *Updater) awaitConfirmation(ctx context.Context, txHash string) {
	deadline := time.Now().Add(u.cfg.ConfirmTimeout)
	for {
		confirmed, err := u.chain.TxConfirmed(ctx, txHash)
		if errors.Is(err, chain.ErrConfirmationUnsupported) {
			u.logger.Debug("Confirmation polling unsupported by configured backends")
			return
		}
		if err == nil && confirmed {
			u.logger.Info("Update confirmed on chain", "tx_hash", txHash)
			return
		}
		if time.Now().After(deadline) {
			u.logger.Warn("Update not confirmed in time", "tx_hash", txHash)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(u.cfg.ConfirmInterval):
		}
	}
}

// checkBalance raises low-balance alerts when the feed UTxO is running
// out of ADA to pay fees with, or out of reward tokens.
func (u *Updater) checkBalance(ctx context.Context) {
	if u.alerter == nil {
		return
	}
	adaEnabled := u.cfg.AdaAlertThreshold > 0
	rewardEnabled := u.cfg.RewardToken != "" && u.cfg.RewardAlertThreshold > 0
	if !adaEnabled && !rewardEnabled {
		return
	}
	utxos, err := u.chain.UTxOsWithUnit(ctx, u.identity.OracleAddress(), u.identity.FeedNFT())
	if err != nil {
		u.logger.Warn("Balance check failed", "error", err.Error())
		return
	}
	var lovelace, reward int64
	for _, utxo := range utxos {
		lovelace += utxo.Value.Coin()
		reward += utxo.Value.AmountOf(u.cfg.RewardToken)
	}
	if adaThreshold := u.cfg.AdaAlertThreshold * 1_000_000; adaEnabled && lovelace < adaThreshold {
		u.alerter.Emit(ctx, alerts.Event{
			Kind:     alerts.KindLowBalance,
			Severity: alerts.SeverityWarning,
			Feed:     u.cfg.Pair.String(),
			Message:  fmt.Sprintf("feed holds %d lovelace, threshold is %d", lovelace, adaThreshold),
		})
	}
	if rewardEnabled && reward < u.cfg.RewardAlertThreshold {
		u.alerter.Emit(ctx, alerts.Event{
			Kind:     alerts.KindLowBalance,
			Severity: alerts.SeverityWarning,
			Feed:     u.cfg.Pair.String(),
			Message:  fmt.Sprintf("feed holds %d reward tokens, threshold is %d", reward, u.cfg.RewardAlertThreshold),
		})
	}
}

// raiseAlert reports a faulted cycle. The cycle context is usually
// already expired at this point, so delivery runs on its own deadline.
func (u *Updater) raiseAlert(phase State, err error) {
	if u.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertDeliveryTimeout)
	defer cancel()
	event := alerts.Event{
		Severity: alerts.SeverityCritical,
		Feed:     u.cfg.Pair.String(),
		Message:  err.Error(),
	}
	switch {
	case phase == StateSubmitting && errors.Is(err, context.DeadlineExceeded):
		event.Kind = alerts.KindUpdateTimeout
	case phase == StateSubmitting:
		event.Kind = alerts.KindSubmissionFailed
	case errors.Is(err, context.DeadlineExceeded):
		event.Kind = alerts.KindAggregationTimeout
	default:
		event.Kind = alerts.KindInsufficientSources
		event.Severity = alerts.SeverityWarning
	}
	u.alerter.Emit(ctx, event)
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

func (u *Updater) setLast(rate calculator.FinalRate) {
	u.mu.Lock()
	u.last = &rate
	u.mu.Unlock()
}
