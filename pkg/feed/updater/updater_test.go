package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/aggregator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/alerts"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/calculator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/keystore"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/sources"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/tx"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	feedNFT      = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa6665656401"
)

type stubSource struct {
	name   string
	value  decimal.Decimal
	err    error
	method sources.RateMethod

	mu        sync.Mutex
	quoteRate *decimal.Decimal // set when the source is quote-dependent
}

func (s *stubSource) Name() string              { return s.name }
func (s *stubSource) Pair() sources.Pair        { return sources.Pair{Base: "ADA", Quote: "USD"} }
func (s *stubSource) Method() sources.RateMethod {
	if s.method == "" {
		return sources.RateMethodMultiply
	}
	return s.method
}

func (s *stubSource) Quote(context.Context) (sources.Observation, error) {
	if s.err != nil {
		return sources.Observation{}, s.err
	}
	return sources.Observation{Pair: s.Pair(), Value: s.value, Source: s.name, ObservedAt: time.Now()}, nil
}

func (s *stubSource) SetQuoteRate(rate decimal.Decimal) {
	s.mu.Lock()
	s.quoteRate = &rate
	s.mu.Unlock()
}

func (s *stubSource) observedQuoteRate() *decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteRate
}

type fakeBuilder struct {
	mu    sync.Mutex
	rates []calculator.FinalRate
	err   error
}

func (f *fakeBuilder) BuildUpdate(_ context.Context, rate calculator.FinalRate) (tx.SignedTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tx.SignedTx{}, f.err
	}
	f.rates = append(f.rates, rate)
	return tx.SignedTx{CBOR: []byte{0x84}, Hash: "cafe"}, nil
}

func (f *fakeBuilder) BuildSweep(context.Context, string, string, int64) (tx.SignedTx, error) {
	panic("not used")
}

type fakeChain struct {
	mu          sync.Mutex
	submissions int
	submitErr   error
	blockSubmit bool // block on ctx until cancelled

	confirmed  bool
	confirmErr error

	utxos []chain.UTxO
}

func (f *fakeChain) UTxOsWithUnit(context.Context, string, string) ([]chain.UTxO, error) {
	return f.utxos, nil
}

func (f *fakeChain) SubmitTx(ctx context.Context, _ []byte) (string, error) {
	if f.blockSubmit {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submissions++
	return "cafe", nil
}

func (f *fakeChain) TxConfirmed(context.Context, string) (bool, error) {
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	return f.confirmed, nil
}

func (f *fakeChain) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions
}

type recordingNotifier struct {
	mu      sync.Mutex
	events  []alerts.Event
	ctxErrs []error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, event alerts.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *recordingNotifier) kinds() []alerts.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alerts.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func testIdentity(t *testing.T) *keystore.Identity {
	t.Helper()
	id, err := keystore.FromMnemonic(keystore.Config{
		Mnemonic:      testMnemonic,
		OracleAddress: "addr1_oracle",
		FeedNFT:       feedNFT,
	})
	require.NoError(t, err)
	return id
}

func newGroup(t *testing.T, name string, srcs ...sources.Source) *aggregator.Group {
	t.Helper()
	g, err := aggregator.NewGroup(aggregator.GroupConfig{
		Name:          name,
		Sources:       srcs,
		Policy:        aggregator.PolicyFirstSuccess,
		MinSources:    1,
		SourceTimeout: time.Second,
	})
	require.NoError(t, err)
	return g
}

func newUpdater(t *testing.T, cfg Config, base, quote *aggregator.Group, builder tx.Builder, chainAccess ChainAccess, alerter *alerts.Manager) *Updater {
	t.Helper()
	if cfg.Pair == (sources.Pair{}) {
		cfg.Pair = sources.Pair{Base: "ADA", Quote: "USD"}
	}
	if cfg.Method == "" {
		cfg.Method = sources.RateMethodMultiply
	}
	u, err := New(cfg, base, quote, builder, chainAccess, testIdentity(t), alerter, nil)
	require.NoError(t, err)
	return u
}

func TestCycleComposesBaseAndQuote(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	quote := newGroup(t, "quote", &stubSource{name: "b", value: decimal.RequireFromString("0.45")})
	builder := &fakeBuilder{}
	chainAccess := &fakeChain{}

	u := newUpdater(t, Config{}, base, quote, builder, chainAccess, nil)
	require.NoError(t, u.RunCycle(context.Background()))

	require.Len(t, builder.rates, 1)
	assert.Equal(t, "0.5535", builder.rates[0].Raw.String())
	assert.Equal(t, int64(553500), builder.rates[0].ScaledInt())
	assert.Equal(t, 1, chainAccess.submitCount())
	assert.Equal(t, StateIdle, u.State())
}

func TestCycleWithoutQuoteGroup(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("0.4513")})
	builder := &fakeBuilder{}

	u := newUpdater(t, Config{}, base, nil, builder, &fakeChain{}, nil)
	require.NoError(t, u.RunCycle(context.Background()))

	require.Len(t, builder.rates, 1)
	assert.Equal(t, "0.4513", builder.rates[0].Raw.String())
}

func TestQuoteRatePropagatesToDependentSources(t *testing.T) {
	dependent := &stubSource{name: "inv", value: decimal.RequireFromString("2")}
	base := newGroup(t, "base", dependent)
	quote := newGroup(t, "quote", &stubSource{name: "b", value: decimal.RequireFromString("0.45")})

	u := newUpdater(t, Config{}, base, quote, &fakeBuilder{}, &fakeChain{}, nil)
	require.NoError(t, u.RunCycle(context.Background()))

	require.NotNil(t, dependent.observedQuoteRate())
	assert.Equal(t, "0.45", dependent.observedQuoteRate().String())
}

func TestZeroToleranceSkipsUnchangedRate(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	builder := &fakeBuilder{}
	chainAccess := &fakeChain{}

	u := newUpdater(t, Config{Tolerance: decimal.Zero}, base, nil, builder, chainAccess, nil)
	require.NoError(t, u.RunCycle(context.Background()))
	require.NoError(t, u.RunCycle(context.Background()))

	// The rate did not move, so the second cycle skips the write.
	assert.Equal(t, 1, chainAccess.submitCount())
}

func TestToleranceSuppressesSmallMoves(t *testing.T) {
	src := &stubSource{name: "a", value: decimal.RequireFromString("1.00")}
	base := newGroup(t, "base", src)
	chainAccess := &fakeChain{}

	u := newUpdater(t, Config{Tolerance: decimal.RequireFromString("0.05")}, base, nil, &fakeBuilder{}, chainAccess, nil)
	require.NoError(t, u.RunCycle(context.Background()))
	require.Equal(t, 1, chainAccess.submitCount())

	// A 3% move stays under the 5% tolerance.
	src.value = decimal.RequireFromString("1.03")
	require.NoError(t, u.RunCycle(context.Background()))
	assert.Equal(t, 1, chainAccess.submitCount())
	assert.NotNil(t, u.LastSubmitted())
	assert.Equal(t, "1", u.LastSubmitted().Raw.String())

	// A 7% move crosses it.
	src.value = decimal.RequireFromString("1.07")
	require.NoError(t, u.RunCycle(context.Background()))
	assert.Equal(t, 2, chainAccess.submitCount())
}

func TestFaultedCycleRaisesAlertAndRecovers(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", err: sources.ErrSourceUnavailable})
	sink := &recordingNotifier{}
	alerter := alerts.NewManager(time.Minute, []alerts.Notifier{sink}, nil)

	u := newUpdater(t, Config{}, base, nil, &fakeBuilder{}, &fakeChain{}, alerter)

	err := u.RunCycle(context.Background())
	require.ErrorIs(t, err, aggregator.ErrInsufficientSources)
	assert.Equal(t, StateIdle, u.State())
	assert.Contains(t, sink.kinds(), alerts.KindInsufficientSources)
	assert.Nil(t, u.LastSubmitted())
}

func TestSubmissionRejectionFaultsCycle(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	chainAccess := &fakeChain{submitErr: chain.ErrSubmissionRejected}
	sink := &recordingNotifier{}
	alerter := alerts.NewManager(time.Minute, []alerts.Notifier{sink}, nil)

	u := newUpdater(t, Config{}, base, nil, &fakeBuilder{}, chainAccess, alerter)

	err := u.RunCycle(context.Background())
	require.ErrorIs(t, err, chain.ErrSubmissionRejected)
	assert.Contains(t, sink.kinds(), alerts.KindSubmissionFailed)
	assert.Nil(t, u.LastSubmitted())
}

func TestCycleTimeoutAbandonsWholesale(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	chainAccess := &fakeChain{blockSubmit: true}

	u := newUpdater(t, Config{CycleTimeout: 50 * time.Millisecond}, base, nil, &fakeBuilder{}, chainAccess, nil)

	err := u.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleOverrun)
	assert.Equal(t, StateIdle, u.State())
	assert.Nil(t, u.LastSubmitted())
}

func TestTimeoutAlertDeliversOnLiveContext(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	chainAccess := &fakeChain{blockSubmit: true}
	sink := &recordingNotifier{}
	alerter := alerts.NewManager(time.Minute, []alerts.Notifier{sink}, nil)

	u := newUpdater(t, Config{CycleTimeout: 50 * time.Millisecond}, base, nil, &fakeBuilder{}, chainAccess, alerter)

	err := u.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleOverrun)

	// The cycle context expired, but the notifier still gets the alert
	// on a context that is not already dead.
	require.Contains(t, sink.kinds(), alerts.KindUpdateTimeout)
	require.Len(t, sink.ctxErrs, 1)
	assert.NoError(t, sink.ctxErrs[0])
}

func TestSuccessfulCycleCountsAsSubmitted(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})

	u := newUpdater(t, Config{Pair: sources.Pair{Base: "CNT", Quote: "USD"}}, base, nil, &fakeBuilder{}, &fakeChain{}, nil)

	counter := metrics.UpdateCyclesTotal.WithLabelValues("CNT/USD", "submitted")
	before := testutil.ToFloat64(counter)
	require.NoError(t, u.RunCycle(context.Background()))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestConfirmationUnsupportedIsTolerated(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	chainAccess := &fakeChain{confirmErr: chain.ErrConfirmationUnsupported}

	u := newUpdater(t, Config{ConfirmTimeout: time.Second, ConfirmInterval: 10 * time.Millisecond}, base, nil, &fakeBuilder{}, chainAccess, nil)
	require.NoError(t, u.RunCycle(context.Background()))
	assert.Equal(t, 1, chainAccess.submitCount())
}

func TestLowBalanceAlert(t *testing.T) {
	base := newGroup(t, "base", &stubSource{name: "a", value: decimal.RequireFromString("1.23")})
	chainAccess := &fakeChain{utxos: []chain.UTxO{{
		Value: chain.Value{chain.Lovelace: 12_000_000, feedNFT: 1},
	}}}
	sink := &recordingNotifier{}
	alerter := alerts.NewManager(time.Minute, []alerts.Notifier{sink}, nil)

	u := newUpdater(t, Config{AdaAlertThreshold: 50}, base, nil, &fakeBuilder{}, chainAccess, alerter)
	require.NoError(t, u.RunCycle(context.Background()))
	assert.Contains(t, sink.kinds(), alerts.KindLowBalance)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil, nil, &fakeBuilder{}, &fakeChain{}, testIdentity(t), nil, nil)
	assert.ErrorIs(t, err, ErrNoBaseGroup)
}
