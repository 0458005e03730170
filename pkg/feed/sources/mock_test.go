package sources

import (
	"context"

	"github.com/fxamacker/cbor/v2"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

// fakeChainReader serves canned UTxOs and datums for source tests.
type fakeChainReader struct {
	utxos  map[string][]chain.UTxO // by address
	datums map[string][]byte       // by hash
	err    error
}

func (f *fakeChainReader) UTxOsAt(_ context.Context, address string) ([]chain.UTxO, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.utxos[address], nil
}

func (f *fakeChainReader) UTxOsWithUnit(_ context.Context, address, unit string) ([]chain.UTxO, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matches []chain.UTxO
	for _, utxo := range f.utxos[address] {
		if utxo.Value.HasUnit(unit) {
			matches = append(matches, utxo)
		}
	}
	return matches, nil
}

func (f *fakeChainReader) DatumByHash(_ context.Context, hash string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.datums[hash]
	if !ok {
		return nil, chain.ErrDatumNotFound
	}
	return raw, nil
}

// mustConstr builds a Plutus constructor-0 datum from integer fields.
func mustConstr(fields ...int64) []byte {
	content := make([]interface{}, len(fields))
	for i, f := range fields {
		content[i] = f
	}
	raw, err := cbor.Marshal(cbor.Tag{Number: 121, Content: content})
	if err != nil {
		panic(err)
	}
	return raw
}

const testPolicyID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var testAssetUnit = testPolicyID + "534e454b" // "SNEK"
