package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

// minAdaPerUTxO is the protocol minimum lovelace every UTxO must carry. It
// is locked alongside the reserves and excluded from the tradable amount.
const minAdaPerUTxO = 2_000_000

// DexPoolSource prices a pair from the reserves of an on-chain DEX pool.
// It locates the single UTxO at the pool address holding both configured
// assets, subtracts the fee amounts recorded in the pool datum (and the
// minimum-ADA reserve on the native side), and divides the adjusted
// reserves.
type DexPoolSource struct {
	*BaseSource
	reader      ChainReader
	poolAddress string
	assetA      string // unit of the first pool asset, "lovelace" or policy+name
	assetB      string // unit of the second pool asset
	secondPrice bool   // return B-per-A instead of A-per-B
}

// NewDexPoolSource creates an on-chain DEX pool source.
//
// Config keys:
//
//	symbol:             "BASE/QUOTE" (required)
//	pool_address:       address holding the pool UTxO (required)
//	pool_assets:        the two pool asset units, "lovelace" or
//	                    "policyID.assetNameHex" (required)
//	second_pool_price:  return the inverted ratio (default false)
//	method:             "multiply" (default) or "divide"
//	chain:              ChainReader (injected by the updater)
func NewDexPoolSource(name string, config map[string]interface{}) (Source, error) {
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

	poolAddress := getStringFromMap(config, "pool_address")
	if poolAddress == "" {
		return nil, fmt.Errorf("%w: 'pool_address' key required", ErrInvalidConfig)
	}

	assets := getStringSliceFromMap(config, "pool_assets")
	if len(assets) != 2 {
		return nil, fmt.Errorf("%w: 'pool_assets' must list exactly 2 assets, got %d", ErrInvalidConfig, len(assets))
	}
	assetA, assetB, err := orderPoolAssets(assets[0], assets[1])
	if err != nil {
		return nil, err
	}

	return &DexPoolSource{
		BaseSource:  NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
		reader:      reader,
		poolAddress: poolAddress,
		assetA:      assetA,
		assetB:      assetB,
		secondPrice: getBoolFromMap(config, "second_pool_price"),
	}, nil
}

// orderPoolAssets normalizes both assets to the concatenated unit form
// value lookups use and puts the pair into canonical order: the native
// currency always first, otherwise ascending policy id.
func orderPoolAssets(a, b string) (string, string, error) {
	for i, unit := range []string{a, b} {
		if unit == chain.Lovelace {
			continue
		}
		id, err := chain.ParseAssetID(unit)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if i == 0 {
			a = id.Unit()
		} else {
			b = id.Unit()
		}
	}
	switch {
	case a == chain.Lovelace:
		return a, b, nil
	case b == chain.Lovelace:
		return b, a, nil
	default:
		units := []string{a, b}
		sort.Strings(units)
		return units[0], units[1], nil
	}
}

// Quote reads the pool UTxO and returns the reserve ratio.
func (s *DexPoolSource) Quote(ctx context.Context) (Observation, error) {
	pool, err := s.findPoolUTxO(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	amountA := s.assetAmount(pool, s.assetA)
	amountB := s.assetAmount(pool, s.assetB)

	fees, err := s.poolFees(ctx, pool)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	adjustedA := amountA - fees.TokenAFees
	adjustedB := amountB - fees.TokenBFees
	if s.assetA == chain.Lovelace {
		adjustedA -= minAdaPerUTxO
	}
	if adjustedA <= 0 || adjustedB <= 0 {
		return Observation{}, fmt.Errorf("%s: %w: adjusted reserves %d/%d", s.Name(), ErrZeroLiquidity, adjustedA, adjustedB)
	}

	reserveA := decimal.NewFromInt(adjustedA)
	reserveB := decimal.NewFromInt(adjustedB)

	var value decimal.Decimal
	if s.secondPrice {
		value = reserveB.Div(reserveA)
	} else {
		value = reserveA.Div(reserveB)
	}

	s.Logger().Debug("Computed pool price",
		"source", s.Name(),
		"pool", pool.Ref.String(),
		"reserve_a", adjustedA,
		"reserve_b", adjustedB,
		"price", value.String())
	return s.Observe(value), nil
}

// findPoolUTxO locates the single UTxO at the pool address carrying both
// configured assets.
func (s *DexPoolSource) findPoolUTxO(ctx context.Context) (chain.UTxO, error) {
	utxos, err := s.utxosForLookup(ctx)
	if err != nil {
		return chain.UTxO{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var matches []chain.UTxO
	for _, utxo := range utxos {
		if s.carriesAsset(utxo.Value, s.assetA) && s.carriesAsset(utxo.Value, s.assetB) {
			matches = append(matches, utxo)
		}
	}
	switch len(matches) {
	case 0:
		return chain.UTxO{}, fmt.Errorf("%w: no UTxO at %s holds %s and %s", ErrPoolNotFound, s.poolAddress, s.assetA, s.assetB)
	case 1:
		return matches[0], nil
	default:
		return chain.UTxO{}, fmt.Errorf("%w: %d UTxOs match at %s", ErrAmbiguousPool, len(matches), s.poolAddress)
	}
}

// utxosForLookup narrows the address scan by the non-native asset when one
// is configured.
func (s *DexPoolSource) utxosForLookup(ctx context.Context) ([]chain.UTxO, error) {
	if s.assetB != chain.Lovelace {
		return s.reader.UTxOsWithUnit(ctx, s.poolAddress, s.assetB)
	}
	return s.reader.UTxOsAt(ctx, s.poolAddress)
}

func (s *DexPoolSource) carriesAsset(value chain.Value, unit string) bool {
	if unit == chain.Lovelace {
		return value.Coin() > 0
	}
	return value.HasUnit(unit)
}

func (s *DexPoolSource) assetAmount(utxo chain.UTxO, unit string) int64 {
	if unit == chain.Lovelace {
		return utxo.Value.Coin()
	}
	return utxo.Value.AmountOf(unit)
}

// poolFees resolves the bar fee datum, inline first, then by hash.
func (s *DexPoolSource) poolFees(ctx context.Context, pool chain.UTxO) (barFeesDatum, error) {
	raw := pool.InlineDatum
	if raw == nil {
		if pool.DatumHash == "" {
			return barFeesDatum{}, fmt.Errorf("%w: pool %s", ErrDatumMissing, pool.Ref.String())
		}
		fetched, err := s.reader.DatumByHash(ctx, pool.DatumHash)
		if err != nil {
			return barFeesDatum{}, fmt.Errorf("%w: datum %s: %v", ErrSourceUnavailable, pool.DatumHash, err)
		}
		raw = fetched
	}
	return decodeBarFees(raw)
}
