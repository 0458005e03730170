// Package tx builds and signs the oracle update and reward sweep
// transactions this node submits.
package tx

import (
	"context"
	"errors"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/calculator"
)

var (
	// ErrFeedUTxONotFound indicates the node's feed UTxO is missing from
	// the oracle address.
	ErrFeedUTxONotFound = errors.New("feed UTxO not found at oracle address")
	// ErrAmbiguousFeedUTxO indicates more than one UTxO carries the feed NFT.
	ErrAmbiguousFeedUTxO = errors.New("multiple UTxOs carry the feed NFT")
	// ErrInsufficientFunds indicates the inputs cannot cover the fee.
	ErrInsufficientFunds = errors.New("insufficient funds for fee")
	// ErrNothingToSweep indicates no reward balance above the threshold.
	ErrNothingToSweep = errors.New("nothing to sweep")
)

// SignedTx is a chain-submittable transaction.
type SignedTx struct {
	CBOR []byte
	Hash string
}

// Builder produces signed transactions from the node's identity. The feed
// updater and the reward collector both consume this contract; they never
// touch serialization themselves.
type Builder interface {
	// BuildUpdate spends the node's feed UTxO and recreates it with the
	// new rate embedded in its inline datum.
	BuildUpdate(ctx context.Context, rate calculator.FinalRate) (SignedTx, error)

	// BuildSweep moves amount of unit from the node's feed UTxO value to
	// the destination address.
	BuildSweep(ctx context.Context, destination, unit string, amount int64) (SignedTx, error)
}
