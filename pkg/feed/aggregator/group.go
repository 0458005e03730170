package aggregator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/sources"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
)

// Policy selects how redundant observations for the same pair collapse into
// one value.
type Policy string

const (
	// PolicyFirstSuccess returns the first successful source in declared
	// order, falling through to the next on failure. Deterministic.
	PolicyFirstSuccess Policy = "first_success"
	// PolicyMedian returns the median of all successful sources. With an
	// even count one of the two middle values is chosen at random, so a
	// stuck source cannot bias the midpoint average.
	PolicyMedian Policy = "median"
)

// ParsePolicy parses a policy string, defaulting to first-success.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "first_success":
		return PolicyFirstSuccess, nil
	case "median":
		return PolicyMedian, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPolicy, s)
	}
}

// GroupConfig configures an aggregation group.
type GroupConfig struct {
	Name          string
	Sources       []sources.Source // declared order matters for first-success
	Policy        Policy
	MinSources    int
	SourceTimeout time.Duration
	Logger        *logging.Logger
}

// Group owns the fan-out and fold over all sources pricing one logical
// pair. Built at startup, queried every cycle, never mutated.
type Group struct {
	name          string
	sources       []sources.Source
	policy        Policy
	minSources    int
	sourceTimeout time.Duration
	logger        *logging.Logger
}

// NewGroup builds an aggregation group.
func NewGroup(cfg GroupConfig) (*Group, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrNoSources)
	}
	if cfg.MinSources <= 0 {
		return nil, fmt.Errorf("%s: %w: %d", cfg.Name, ErrInvalidMinSources, cfg.MinSources)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyFirstSuccess
	}
	if policy != PolicyFirstSuccess && policy != PolicyMedian {
		return nil, fmt.Errorf("%s: %w: %s", cfg.Name, ErrInvalidPolicy, policy)
	}
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Group{
		name:          cfg.Name,
		sources:       cfg.Sources,
		policy:        policy,
		minSources:    cfg.MinSources,
		sourceTimeout: timeout,
		logger:        logger,
	}, nil
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Sources returns the group's sources in declared order.
func (g *Group) Sources() []sources.Source {
	return g.sources
}

type result struct {
	index int
	value decimal.Decimal
	err   error
}

// Resolve queries every source concurrently, each with its own timeout,
// and folds the successes per the configured policy. Individual failures
// are absorbed as degraded redundancy; only dropping below the minimum
// source count fails the group.
func (g *Group) Resolve(ctx context.Context) (decimal.Decimal, error) {
	started := time.Now()

	results := make([]result, len(g.sources))
	var wg sync.WaitGroup
	for i, src := range g.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = g.querySource(ctx, i, src)
		}(i, src)
	}
	wg.Wait()

	successes := make([]result, 0, len(results))
	for _, r := range results {
		if r.err == nil {
			successes = append(successes, r)
		}
	}
	metrics.RecordAggregation(g.name, string(g.policy), len(successes), time.Since(started))

	if len(successes) < g.minSources {
		return decimal.Decimal{}, fmt.Errorf("%s: %w: %d of %d succeeded, need %d",
			g.name, ErrInsufficientSources, len(successes), len(g.sources), g.minSources)
	}

	value := g.fold(successes)
	g.logger.Debug("Group resolved",
		"group", g.name,
		"policy", string(g.policy),
		"successes", len(successes),
		"value", value.String())
	return value, nil
}

// querySource runs one source under its own deadline and normalizes the
// raw value by the source's rate method: a divide source reports the pair
// inverted, so its reciprocal participates in the fold.
func (g *Group) querySource(ctx context.Context, index int, src sources.Source) result {
	queryCtx, cancel := context.WithTimeout(ctx, g.sourceTimeout)
	defer cancel()

	started := time.Now()
	obs, err := src.Quote(queryCtx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordSourceQuote(src.Name(), outcome, time.Since(started))
	if err != nil {
		g.logger.Warn("Source query failed", "group", g.name, "source", src.Name(), "error", err.Error())
		return result{index: index, err: err}
	}

	value := obs.Value
	if src.Method() == sources.RateMethodDivide {
		if value.IsZero() {
			err := fmt.Errorf("%s: %w: zero value cannot be inverted", src.Name(), sources.ErrSourceDataInvalid)
			g.logger.Warn("Source query failed", "group", g.name, "source", src.Name(), "error", err.Error())
			return result{index: index, err: err}
		}
		value = decimal.NewFromInt(1).Div(value)
	}
	return result{index: index, value: value}
}

// fold collapses the successful observations per policy. Successes are
// non-empty when called.
func (g *Group) fold(successes []result) decimal.Decimal {
	if len(successes) == 1 {
		return successes[0].value
	}

	switch g.policy {
	case PolicyMedian:
		values := make([]decimal.Decimal, len(successes))
		for i, r := range successes {
			values[i] = r.value
		}
		return randomMedian(values)
	default:
		best := successes[0]
		for _, r := range successes[1:] {
			if r.index < best.index {
				best = r
			}
		}
		return best.value
	}
}

// randomMedian returns the middle element of the sorted values; for an even
// count it picks one of the two middle elements at random instead of
// averaging them, so the result is always a value some source actually
// reported.
func randomMedian(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	if rand.Intn(2) == 0 { //nolint:gosec // selection jitter, not key material
		return sorted[mid-1]
	}
	return sorted[mid]
}
