// Package chain provides access to Cardano chain data through pluggable
// query and submission backends.
package chain

import (
	"fmt"
	"strings"
	"time"
)

// Lovelace is the unit name of the native currency.
const Lovelace = "lovelace"

// AssetID identifies a native asset by minting policy and asset name.
type AssetID struct {
	PolicyID  string // hex-encoded script hash (56 chars)
	AssetName string // hex-encoded asset name, may be empty
}

// Unit returns the concatenated policy+name form used by query backends.
func (a AssetID) Unit() string {
	return a.PolicyID + a.AssetName
}

func (a AssetID) String() string {
	if a.AssetName == "" {
		return a.PolicyID
	}
	return a.PolicyID + "." + a.AssetName
}

// ParseAssetID parses an asset identifier in either the dotted
// "policy.assetNameHex" form or the concatenated unit form that query
// backends use. A bare 56-char policy id is a policy with an empty name.
func ParseAssetID(s string) (AssetID, error) {
	if s == Lovelace {
		return AssetID{}, fmt.Errorf("%w: lovelace is not a native asset", ErrInvalidAssetID)
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 2 {
		if len(parts[0]) != 56 {
			return AssetID{}, fmt.Errorf("%w: policy id must be 56 hex chars: %s", ErrInvalidAssetID, s)
		}
		return AssetID{PolicyID: parts[0], AssetName: parts[1]}, nil
	}
	if len(s) < 56 {
		return AssetID{}, fmt.Errorf("%w: policy id must be 56 hex chars: %s", ErrInvalidAssetID, s)
	}
	return AssetID{PolicyID: s[:56], AssetName: s[56:]}, nil
}

// Value holds asset quantities keyed by unit ("lovelace" or policy+name hex).
type Value map[string]int64

// Coin returns the lovelace quantity.
func (v Value) Coin() int64 {
	return v[Lovelace]
}

// AmountOf returns the quantity of the given unit, zero if absent.
func (v Value) AmountOf(unit string) int64 {
	return v[unit]
}

// HasUnit reports whether the value carries a nonzero quantity of unit.
func (v Value) HasUnit(unit string) bool {
	return v[unit] > 0
}

// HasPolicy reports whether any asset under the given policy is present.
func (v Value) HasPolicy(policyID string) bool {
	for unit, qty := range v {
		if unit == Lovelace || qty <= 0 {
			continue
		}
		if strings.HasPrefix(unit, policyID) {
			return true
		}
	}
	return false
}

// OutRef identifies a transaction output.
type OutRef struct {
	TxHash string
	Index  uint32
}

func (r OutRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.Index)
}

// UTxO is an unspent transaction output.
type UTxO struct {
	Ref         OutRef
	Address     string
	Value       Value
	DatumHash   string // empty when no datum or inline datum present
	InlineDatum []byte // raw CBOR, nil when datum is by hash only
	Slot        uint64 // slot of the block that created this output
}

// Tip describes the most recently observed block.
type Tip struct {
	Slot      uint64
	Hash      string
	Height    uint64
	Timestamp time.Time
}
