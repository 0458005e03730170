package sources

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

// PoolSnapshot is the on-chain state of one liquidity pool at a ledger
// point. Snapshots are fetched fresh each cycle and never cached, since the
// reserves can change every block.
type PoolSnapshot struct {
	Venue         string
	NativeReserve decimal.Decimal
	AssetReserve  decimal.Decimal
	LPSupply      decimal.Decimal
	Slot          uint64
}

// NAV returns the net asset value of one LP token in native units. For a
// balanced constant-product pool both sides hold equal value, so the pool's
// worth is twice its native reserve.
func (p PoolSnapshot) NAV() (decimal.Decimal, error) {
	if p.LPSupply.LessThanOrEqual(decimal.Zero) || p.NativeReserve.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, fmt.Errorf("%w: venue %s", ErrZeroLiquidity, p.Venue)
	}
	return p.NativeReserve.Mul(decimal.NewFromInt(2)).Div(p.LPSupply), nil
}

// lpVenue is one DEX listing of the pool.
type lpVenue struct {
	name        string
	poolAddress string
	supplyIndex int // index of the LP supply field in the pool datum
}

// LPNavSource prices a liquidity-pool token by the net asset value of the
// underlying pool rather than by a secondary market for the LP token
// itself. Pricing from reserves is immune to thin-liquidity manipulation of
// the LP token's own trading venue and works even when no such venue exists.
// Only native-currency-paired pools are supported.
type LPNavSource struct {
	*BaseSource
	reader      ChainReader
	assetUnit   string // the non-native pool asset
	venues      []lpVenue
	tieBreak    string // "deepest" or "freshest"
	quoteMethod RateMethod
	useQuote    bool

	quoteMu   sync.Mutex
	quoteRate decimal.Decimal
	quoteSet  bool
}

// NewLPNavSource creates an LP NAV source.
//
// Config keys:
//
//	symbol:       "LP-TOKEN/QUOTE" (required)
//	pool_assets:  the two underlying assets; one must be "lovelace" (required)
//	venues:       list of {name, pool_address, supply_index} objects, one
//	              per DEX the LP token exists on (required)
//	tie_break:    "deepest" (default) or "freshest", used when several
//	              venues list the same token; "freshest" needs a backend
//	              that reports UTxO creation slots (kupo)
//	quote_method: optional "multiply"/"divide" conversion of the NAV
//	              through the resolved quote-currency rate
//	method:       "multiply" (default) or "divide"
//	chain:        ChainReader (injected by the updater)
func NewLPNavSource(name string, config map[string]interface{}) (Source, error) {
	pair, err := ParseSymbolFromConfig(config)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethodFromConfig(config)
	if err != nil {
		return nil, err
	}
	reader, err := GetChainFromConfig(config)
	if err != nil {
		return nil, err
	}

	assets := getStringSliceFromMap(config, "pool_assets")
	if len(assets) != 2 {
		return nil, fmt.Errorf("%w: 'pool_assets' must list exactly 2 assets, got %d", ErrInvalidConfig, len(assets))
	}
	assetUnit, err := nonNativePoolAsset(assets)
	if err != nil {
		return nil, err
	}

	venues, err := parseVenues(config)
	if err != nil {
		return nil, err
	}

	tieBreak := getStringFromMap(config, "tie_break")
	if tieBreak == "" {
		tieBreak = "deepest"
	}
	if tieBreak != "deepest" && tieBreak != "freshest" {
		return nil, fmt.Errorf("%w: tie_break must be 'deepest' or 'freshest', got %q", ErrInvalidConfig, tieBreak)
	}

	src := &LPNavSource{
		BaseSource: NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
		reader:     reader,
		assetUnit:  assetUnit,
		venues:     venues,
		tieBreak:   tieBreak,
	}

	if qm := getStringFromMap(config, "quote_method"); qm != "" {
		parsed, err := ParseRateMethod(qm)
		if err != nil {
			return nil, err
		}
		src.quoteMethod = parsed
		src.useQuote = true
	}

	return src, nil
}

// nonNativePoolAsset rejects pools not paired against the native currency
// and returns the other asset in the concatenated unit form value lookups
// use.
func nonNativePoolAsset(assets []string) (string, error) {
	hasNative := false
	other := ""
	for _, unit := range assets {
		if unit == chain.Lovelace {
			hasNative = true
			continue
		}
		id, err := chain.ParseAssetID(unit)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		other = id.Unit()
	}
	if !hasNative || other == "" {
		return "", fmt.Errorf("%w: pool assets %v", ErrUnsupportedPoolComposition, assets)
	}
	return other, nil
}

func parseVenues(config map[string]interface{}) ([]lpVenue, error) {
	raw, ok := config["venues"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: 'venues' key required", ErrInvalidConfig)
	}
	venues := make([]lpVenue, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: venue %d is not an object", ErrInvalidConfig, i)
		}
		v := lpVenue{
			name:        getStringFromMap(m, "name"),
			poolAddress: getStringFromMap(m, "pool_address"),
			supplyIndex: getIntFromMap(m, "supply_index", 0),
		}
		if v.name == "" || v.poolAddress == "" {
			return nil, fmt.Errorf("%w: venue %d needs 'name' and 'pool_address'", ErrInvalidConfig, i)
		}
		venues = append(venues, v)
	}
	return venues, nil
}

// SetQuoteRate supplies the quote-currency rate resolved earlier this cycle.
func (s *LPNavSource) SetQuoteRate(rate decimal.Decimal) {
	s.quoteMu.Lock()
	defer s.quoteMu.Unlock()
	s.quoteRate = rate
	s.quoteSet = true
}

// Quote computes the LP token NAV from the best available pool snapshot.
func (s *LPNavSource) Quote(ctx context.Context) (Observation, error) {
	snapshots := make([]PoolSnapshot, 0, len(s.venues))
	for _, venue := range s.venues {
		snap, err := s.fetchSnapshot(ctx, venue)
		if err != nil {
			s.Logger().Warn("Pool snapshot failed", "source", s.Name(), "venue", venue.name, "error", err.Error())
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if len(snapshots) == 0 {
		return Observation{}, fmt.Errorf("%s: %w: no venue produced a snapshot", s.Name(), ErrSourceUnavailable)
	}

	best := s.selectSnapshot(snapshots)
	nav, err := best.NAV()
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	if s.useQuote {
		nav, err = s.convertQuote(nav)
		if err != nil {
			return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
		}
	}

	s.Logger().Debug("Computed LP NAV",
		"source", s.Name(),
		"venue", best.Venue,
		"native_reserve", best.NativeReserve.String(),
		"lp_supply", best.LPSupply.String(),
		"nav", nav.String())
	return s.Observe(nav), nil
}

// selectSnapshot applies the configured tie-break. Mismatched pools are
// never averaged. "freshest" compares creation slots, which only the kupo
// backend reports; against other backends every slot is zero and the first
// venue wins, so "deepest" is the safe choice there.
func (s *LPNavSource) selectSnapshot(snapshots []PoolSnapshot) PoolSnapshot {
	best := snapshots[0]
	for _, snap := range snapshots[1:] {
		switch s.tieBreak {
		case "freshest":
			if snap.Slot > best.Slot {
				best = snap
			}
		default: // deepest
			if snap.NativeReserve.GreaterThan(best.NativeReserve) {
				best = snap
			}
		}
	}
	return best
}

func (s *LPNavSource) convertQuote(nav decimal.Decimal) (decimal.Decimal, error) {
	s.quoteMu.Lock()
	defer s.quoteMu.Unlock()
	if !s.quoteSet {
		return decimal.Decimal{}, ErrQuoteRateNotSet
	}
	if s.quoteMethod == RateMethodDivide {
		if s.quoteRate.IsZero() {
			return decimal.Decimal{}, fmt.Errorf("%w: zero quote rate", ErrSourceDataInvalid)
		}
		return nav.Div(s.quoteRate), nil
	}
	return nav.Mul(s.quoteRate), nil
}

// fetchSnapshot reads one venue's pool UTxO and decodes reserves and supply.
func (s *LPNavSource) fetchSnapshot(ctx context.Context, venue lpVenue) (PoolSnapshot, error) {
	utxos, err := s.reader.UTxOsWithUnit(ctx, venue.poolAddress, s.assetUnit)
	if err != nil {
		return PoolSnapshot{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	switch len(utxos) {
	case 0:
		return PoolSnapshot{}, fmt.Errorf("%w: no UTxO at %s holds %s", ErrPoolNotFound, venue.poolAddress, s.assetUnit)
	case 1:
	default:
		return PoolSnapshot{}, fmt.Errorf("%w: %d UTxOs match at %s", ErrAmbiguousPool, len(utxos), venue.poolAddress)
	}
	pool := utxos[0]

	supply, err := s.lpSupply(ctx, pool, venue.supplyIndex)
	if err != nil {
		return PoolSnapshot{}, err
	}

	return PoolSnapshot{
		Venue:         venue.name,
		NativeReserve: decimal.NewFromInt(pool.Value.Coin()),
		AssetReserve:  decimal.NewFromInt(pool.Value.AmountOf(s.assetUnit)),
		LPSupply:      decimal.NewFromInt(supply),
		Slot:          pool.Slot,
	}, nil
}

// lpSupply reads the circulating LP token supply from the pool datum.
func (s *LPNavSource) lpSupply(ctx context.Context, pool chain.UTxO, supplyIndex int) (int64, error) {
	raw := pool.InlineDatum
	if raw == nil {
		if pool.DatumHash == "" {
			return 0, fmt.Errorf("%w: pool %s", ErrDatumMissing, pool.Ref.String())
		}
		fetched, err := s.reader.DatumByHash(ctx, pool.DatumHash)
		if err != nil {
			return 0, fmt.Errorf("%w: datum %s: %v", ErrSourceUnavailable, pool.DatumHash, err)
		}
		raw = fetched
	}

	_, fields, err := decodeConstr(raw)
	if err != nil {
		return 0, err
	}
	return constrFieldInt(fields, supplyIndex)
}
