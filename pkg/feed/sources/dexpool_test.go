package sources

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

const poolAddr = "addr1_test_pool"

func newDexPoolReader(coin, tokenAmount int64, datum []byte) *fakeChainReader {
	return &fakeChainReader{
		utxos: map[string][]chain.UTxO{
			poolAddr: {
				{
					Ref:         chain.OutRef{TxHash: "ab", Index: 0},
					Address:     poolAddr,
					Value:       chain.Value{chain.Lovelace: coin, testAssetUnit: tokenAmount},
					InlineDatum: datum,
				},
			},
		},
	}
}

func dexPoolConfig(reader ChainReader, extra map[string]interface{}) map[string]interface{} {
	config := map[string]interface{}{
		"symbol":       "ADA/SNEK",
		"pool_address": poolAddr,
		"pool_assets":  []interface{}{"lovelace", testAssetUnit},
		"chain":        reader,
	}
	for k, v := range extra {
		config[k] = v
	}
	return config
}

func TestDexPoolSource_SubtractsFeesAndMinAda(t *testing.T) {
	// 10 ADA of reserves plus min-ADA and 1_000_000 of accumulated fees on
	// the native side, 5_000_000 tokens with 1_000_000 fees on the other.
	reader := newDexPoolReader(
		10_000_000+minAdaPerUTxO+1_000_000,
		5_000_000+1_000_000,
		mustConstr(1_000_000, 1_000_000),
	)

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	obs, err := src.Quote(context.Background())
	require.NoError(t, err)
	// 10_000_000 / 5_000_000
	assert.True(t, obs.Value.Equal(decimal.NewFromInt(2)), "got %s", obs.Value)
}

func TestDexPoolSource_SecondPoolPrice(t *testing.T) {
	reader := newDexPoolReader(10_000_000+minAdaPerUTxO, 5_000_000, mustConstr(0, 0))

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, map[string]interface{}{
		"second_pool_price": true,
	}))
	require.NoError(t, err)

	obs, err := src.Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.Value.Equal(decimal.NewFromFloat(0.5)), "got %s", obs.Value)
}

func TestDexPoolSource_DatumByHash(t *testing.T) {
	reader := newDexPoolReader(10_000_000+minAdaPerUTxO, 5_000_000, nil)
	reader.utxos[poolAddr][0].DatumHash = "deadbeef"
	reader.datums = map[string][]byte{"deadbeef": mustConstr(0, 0)}

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	obs, err := src.Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.Value.Equal(decimal.NewFromInt(2)))
}

func TestDexPoolSource_PoolNotFound(t *testing.T) {
	reader := &fakeChainReader{utxos: map[string][]chain.UTxO{}}

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	_, err = src.Quote(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestDexPoolSource_AmbiguousPool(t *testing.T) {
	reader := newDexPoolReader(10_000_000, 5_000_000, mustConstr(0, 0))
	reader.utxos[poolAddr] = append(reader.utxos[poolAddr], reader.utxos[poolAddr][0])

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	_, err = src.Quote(context.Background())
	assert.ErrorIs(t, err, ErrAmbiguousPool)
}

func TestDexPoolSource_ZeroLiquidityAfterAdjustment(t *testing.T) {
	// All native value eaten by fees and the min-ADA reserve.
	reader := newDexPoolReader(minAdaPerUTxO, 5_000_000, mustConstr(0, 0))

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	_, err = src.Quote(context.Background())
	assert.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestDexPoolSource_MissingDatum(t *testing.T) {
	reader := newDexPoolReader(10_000_000, 5_000_000, nil)

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, nil))
	require.NoError(t, err)

	_, err = src.Quote(context.Background())
	assert.ErrorIs(t, err, ErrDatumMissing)
}

func TestDexPoolSource_DottedAssetConfig(t *testing.T) {
	// pool_assets in the dotted policy.nameHex form still match value
	// entries, which are keyed by the concatenated unit.
	reader := newDexPoolReader(10_000_000+minAdaPerUTxO, 5_000_000, mustConstr(0, 0))

	src, err := NewDexPoolSource("vyfi", dexPoolConfig(reader, map[string]interface{}{
		"pool_assets": []interface{}{"lovelace", testPolicyID + ".534e454b"},
	}))
	require.NoError(t, err)

	obs, err := src.Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.Value.Equal(decimal.NewFromInt(2)), "got %s", obs.Value)
}

func TestOrderPoolAssets_NativeFirst(t *testing.T) {
	a, b, err := orderPoolAssets(testAssetUnit, "lovelace")
	require.NoError(t, err)
	assert.Equal(t, "lovelace", a)
	assert.Equal(t, testAssetUnit, b)
}

func TestOrderPoolAssets_AscendingPolicy(t *testing.T) {
	high := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffff" + "aa"
	a, b, err := orderPoolAssets(high, testAssetUnit)
	require.NoError(t, err)
	assert.Equal(t, testAssetUnit, a)
	assert.Equal(t, high, b)
}
