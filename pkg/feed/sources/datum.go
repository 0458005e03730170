package sources

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Plutus data constructors are CBOR-tagged arrays: tags 121..127 cover
// constructor indices 0..6 and tags 1280..1400 cover 7..127.
const (
	constrTagBase      = 121
	constrTagBaseHigh  = 127
	constrTagExtBase   = 1280
	constrTagExtHigh   = 1400
	constrTagExtOffset = 7
)

// decodeConstr decodes a Plutus constructor datum into its index and fields.
func decodeConstr(raw []byte) (uint64, []interface{}, error) {
	var tag cbor.Tag
	if err := cbor.Unmarshal(raw, &tag); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSourceDataInvalid, err)
	}

	var index uint64
	switch {
	case tag.Number >= constrTagBase && tag.Number <= constrTagBaseHigh:
		index = tag.Number - constrTagBase
	case tag.Number >= constrTagExtBase && tag.Number <= constrTagExtHigh:
		index = tag.Number - constrTagExtBase + constrTagExtOffset
	default:
		return 0, nil, fmt.Errorf("%w: unexpected CBOR tag %d", ErrSourceDataInvalid, tag.Number)
	}

	fields, ok := tag.Content.([]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("%w: constructor content is %T", ErrSourceDataInvalid, tag.Content)
	}
	return index, fields, nil
}

// constrFieldInt extracts an integer field from decoded constructor fields.
func constrFieldInt(fields []interface{}, idx int) (int64, error) {
	if idx >= len(fields) {
		return 0, fmt.Errorf("%w: datum has %d fields, want index %d", ErrSourceDataInvalid, len(fields), idx)
	}
	switch v := fields[idx].(type) {
	case uint64:
		return int64(v), nil
	case int64:
		return v, nil
	case big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("%w: field %d out of int64 range", ErrSourceDataInvalid, idx)
		}
		return v.Int64(), nil
	default:
		return 0, fmt.Errorf("%w: field %d is %T, want integer", ErrSourceDataInvalid, idx, fields[idx])
	}
}

// barFeesDatum holds the accumulated protocol fees a pool keeps inside its
// own UTxO. They are not part of the tradable reserves and must be
// subtracted before computing a price.
type barFeesDatum struct {
	TokenAFees int64
	TokenBFees int64
}

// decodeBarFees decodes the bar fee pair from a pool datum. The fees are the
// first two integer fields of the constructor.
func decodeBarFees(raw []byte) (barFeesDatum, error) {
	_, fields, err := decodeConstr(raw)
	if err != nil {
		return barFeesDatum{}, err
	}
	feesA, err := constrFieldInt(fields, 0)
	if err != nil {
		return barFeesDatum{}, err
	}
	feesB, err := constrFieldInt(fields, 1)
	if err != nil {
		return barFeesDatum{}, err
	}
	return barFeesDatum{TokenAFees: feesA, TokenBFees: feesB}, nil
}
