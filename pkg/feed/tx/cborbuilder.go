package tx

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/calculator"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/keystore"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
)

const (
	defaultFee = 200_000
	minAdaOut  = 2_000_000
)

// ChainReader is the read access the builder needs to locate its inputs.
type ChainReader interface {
	UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error)
}

// CBORBuilder assembles update and sweep transactions around the node's
// feed UTxO and signs them with the node identity.
type CBORBuilder struct {
	identity *keystore.Identity
	reader   ChainReader
	fee      int64
	logger   *logging.Logger

	enc cbor.EncMode
}

// NewCBORBuilder creates a builder. fee of zero selects the default.
func NewCBORBuilder(identity *keystore.Identity, reader ChainReader, fee int64, logger *logging.Logger) (*CBORBuilder, error) {
	if identity == nil {
		return nil, fmt.Errorf("tx: identity is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("tx: chain reader is required")
	}
	if fee <= 0 {
		fee = defaultFee
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}
	return &CBORBuilder{
		identity: identity,
		reader:   reader,
		fee:      fee,
		logger:   logger,
		enc:      enc,
	}, nil
}

// findFeedUTxO locates the single UTxO carrying the node's feed NFT.
func (b *CBORBuilder) findFeedUTxO(ctx context.Context) (chain.UTxO, error) {
	utxos, err := b.reader.UTxOsWithUnit(ctx, b.identity.OracleAddress(), b.identity.FeedNFT())
	if err != nil {
		return chain.UTxO{}, err
	}
	switch len(utxos) {
	case 0:
		return chain.UTxO{}, fmt.Errorf("%w: %s", ErrFeedUTxONotFound, b.identity.OracleAddress())
	case 1:
		return utxos[0], nil
	default:
		return chain.UTxO{}, fmt.Errorf("%w: found %d", ErrAmbiguousFeedUTxO, len(utxos))
	}
}

// BuildUpdate recreates the feed UTxO with the new rate in its datum.
func (b *CBORBuilder) BuildUpdate(ctx context.Context, rate calculator.FinalRate) (SignedTx, error) {
	feed, err := b.findFeedUTxO(ctx)
	if err != nil {
		return SignedTx{}, err
	}
	if feed.Value.Coin() <= b.fee {
		return SignedTx{}, fmt.Errorf("%w: feed holds %d lovelace, fee is %d", ErrInsufficientFunds, feed.Value.Coin(), b.fee)
	}

	datum, err := b.rateDatum(rate)
	if err != nil {
		return SignedTx{}, err
	}

	outValue := cloneValue(feed.Value)
	outValue[chain.Lovelace] -= b.fee

	output, err := b.output(feed.Address, outValue, datum)
	if err != nil {
		return SignedTx{}, err
	}

	signed, err := b.assemble([]chain.OutRef{feed.Ref}, []interface{}{output})
	if err != nil {
		return SignedTx{}, err
	}
	b.logger.Debug("Built update transaction",
		"tx_hash", signed.Hash,
		"rate", rate.Value.String(),
		"input", feed.Ref.String())
	return signed, nil
}

// BuildSweep moves amount of unit from the feed UTxO to destination,
// keeping the feed itself (NFT, datum hash carried over) at the oracle.
func (b *CBORBuilder) BuildSweep(ctx context.Context, destination, unit string, amount int64) (SignedTx, error) {
	if amount <= 0 {
		return SignedTx{}, ErrNothingToSweep
	}
	feed, err := b.findFeedUTxO(ctx)
	if err != nil {
		return SignedTx{}, err
	}
	if feed.Value.AmountOf(unit) < amount {
		return SignedTx{}, fmt.Errorf("%w: feed holds %d of %s, want %d", ErrNothingToSweep, feed.Value.AmountOf(unit), unit, amount)
	}
	if feed.Value.Coin() <= b.fee+minAdaOut {
		return SignedTx{}, fmt.Errorf("%w: feed holds %d lovelace", ErrInsufficientFunds, feed.Value.Coin())
	}

	sweepValue := chain.Value{chain.Lovelace: minAdaOut, unit: amount}
	sweepOut, err := b.output(destination, sweepValue, nil)
	if err != nil {
		return SignedTx{}, err
	}

	changeValue := cloneValue(feed.Value)
	changeValue[chain.Lovelace] -= b.fee + minAdaOut
	changeValue[unit] -= amount
	if changeValue[unit] == 0 {
		delete(changeValue, unit)
	}
	changeOut, err := b.output(feed.Address, changeValue, nil)
	if err != nil {
		return SignedTx{}, err
	}

	signed, err := b.assemble([]chain.OutRef{feed.Ref}, []interface{}{sweepOut, changeOut})
	if err != nil {
		return SignedTx{}, err
	}
	b.logger.Debug("Built sweep transaction",
		"tx_hash", signed.Hash,
		"destination", destination,
		"unit", unit,
		"amount", amount)
	return signed, nil
}

// rateDatum encodes the published rate as a constructor datum of
// [scaled rate, precision multiplier, computed-at posix seconds].
func (b *CBORBuilder) rateDatum(rate calculator.FinalRate) ([]byte, error) {
	datum := cbor.Tag{
		Number: 121,
		Content: []interface{}{
			rate.ScaledInt(),
			rate.PrecisionMultiplier,
			rate.ComputedAt.Unix(),
		},
	}
	raw, err := b.enc.Marshal(datum)
	if err != nil {
		return nil, fmt.Errorf("tx: encoding datum: %w", err)
	}
	return raw, nil
}

// output encodes one transaction output. datum, when given, is attached
// inline.
func (b *CBORBuilder) output(address string, value chain.Value, datum []byte) (interface{}, error) {
	encodedValue, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	out := map[int]interface{}{
		0: []byte(address),
		1: encodedValue,
	}
	if datum != nil {
		// Inline datum: [1, wrapped cbor bytes].
		out[2] = []interface{}{1, cbor.Tag{Number: 24, Content: datum}}
	}
	return out, nil
}

// assemble encodes the body, hashes it into the tx id, signs, and wraps
// body and witness set into the final transaction.
func (b *CBORBuilder) assemble(inputs []chain.OutRef, outputs []interface{}) (SignedTx, error) {
	encodedInputs := make([]interface{}, len(inputs))
	for i, ref := range inputs {
		hash, err := hex.DecodeString(ref.TxHash)
		if err != nil {
			return SignedTx{}, fmt.Errorf("tx: input hash %q: %w", ref.TxHash, err)
		}
		encodedInputs[i] = []interface{}{hash, ref.Index}
	}

	body := map[int]interface{}{
		0: encodedInputs,
		1: outputs,
		2: b.fee,
	}
	bodyCBOR, err := b.enc.Marshal(body)
	if err != nil {
		return SignedTx{}, fmt.Errorf("tx: encoding body: %w", err)
	}

	txID := blake2b.Sum256(bodyCBOR)
	signature := b.identity.Sign(txID[:])

	witnesses := map[int]interface{}{
		0: []interface{}{
			[]interface{}{b.identity.PubKey(), signature},
		},
	}

	full := []interface{}{
		cbor.RawMessage(bodyCBOR),
		witnesses,
		true,
		nil,
	}
	txCBOR, err := b.enc.Marshal(full)
	if err != nil {
		return SignedTx{}, fmt.Errorf("tx: encoding transaction: %w", err)
	}

	return SignedTx{CBOR: txCBOR, Hash: hex.EncodeToString(txID[:])}, nil
}

// cloneValue copies a value so output arithmetic never mutates the
// input UTxO the reader handed us.
func cloneValue(value chain.Value) chain.Value {
	out := make(chain.Value, len(value))
	for unit, qty := range value {
		out[unit] = qty
	}
	return out
}

// encodeValue encodes a value as plain coin or [coin, multiasset].
func encodeValue(value chain.Value) (interface{}, error) {
	coin := value.Coin()
	assets := make(map[string]map[string]int64)
	for unit, qty := range value {
		if unit == chain.Lovelace || qty == 0 {
			continue
		}
		if len(unit) < 56 {
			return nil, fmt.Errorf("tx: malformed unit %q", unit)
		}
		policy, err := hex.DecodeString(unit[:56])
		if err != nil {
			return nil, fmt.Errorf("tx: unit policy %q: %w", unit, err)
		}
		name, err := hex.DecodeString(unit[56:])
		if err != nil {
			return nil, fmt.Errorf("tx: unit name %q: %w", unit, err)
		}
		if assets[string(policy)] == nil {
			assets[string(policy)] = make(map[string]int64)
		}
		assets[string(policy)][string(name)] = qty
	}
	if len(assets) == 0 {
		return coin, nil
	}

	// Byte-string map keys need cbor.ByteString; []byte is not hashable.
	multi := make(map[cbor.ByteString]interface{}, len(assets))
	for policy, names := range assets {
		inner := make(map[cbor.ByteString]int64, len(names))
		for name, qty := range names {
			inner[cbor.ByteString(name)] = qty
		}
		multi[cbor.ByteString(policy)] = inner
	}
	return []interface{}{coin, multi}, nil
}
