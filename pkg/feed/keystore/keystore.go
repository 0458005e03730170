// Package keystore derives the node's signing identity from a BIP39
// mnemonic and holds the on-chain slots this node is authorized to update.
package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cosmos/go-bip39"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidMnemonic indicates a mnemonic that fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrMissingOracleAddress indicates no oracle address was configured.
	ErrMissingOracleAddress = errors.New("oracle address is required")
	// ErrMissingFeedNFT indicates no feed slot identifier was configured.
	ErrMissingFeedNFT = errors.New("feed NFT is required")
)

// Identity is the node's signing capability plus the identifiers of the
// on-chain slots it updates. Read-only after startup; never shared mutably.
type Identity struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyHash []byte

	oracleAddress string
	feedNFT       string
	aggStateNFT   string
}

// Config identifies the node on chain.
type Config struct {
	Mnemonic      string
	OracleAddress string
	// FeedNFT is the unit of the NFT marking this node's own feed UTxO.
	FeedNFT string
	// AggStateNFT is the unit of the NFT marking the shared aggregated
	// state UTxO. Optional; not every deployment exposes it.
	AggStateNFT string
}

// FromMnemonic derives the identity. The ed25519 payment key comes from the
// first 32 bytes of the BIP39 seed; the verification key hash is its
// blake2b-224 digest as Cardano addresses use.
func FromMnemonic(cfg Config) (*Identity, error) {
	if !bip39.IsMnemonicValid(cfg.Mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if cfg.OracleAddress == "" {
		return nil, ErrMissingOracleAddress
	}
	if cfg.FeedNFT == "" {
		return nil, ErrMissingFeedNFT
	}

	seed := bip39.NewSeed(cfg.Mnemonic, "")
	privKey := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pubKey := privKey.Public().(ed25519.PublicKey)

	hasher, err := blake2b.New(28, nil)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	hasher.Write(pubKey)

	return &Identity{
		privKey:       privKey,
		pubKey:        pubKey,
		keyHash:       hasher.Sum(nil),
		oracleAddress: cfg.OracleAddress,
		feedNFT:       cfg.FeedNFT,
		aggStateNFT:   cfg.AggStateNFT,
	}, nil
}

// Sign signs a message with the payment key.
func (i *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(i.privKey, msg)
}

// PubKey returns the verification key bytes.
func (i *Identity) PubKey() []byte {
	out := make([]byte, len(i.pubKey))
	copy(out, i.pubKey)
	return out
}

// KeyHash returns the blake2b-224 verification key hash.
func (i *Identity) KeyHash() []byte {
	out := make([]byte, len(i.keyHash))
	copy(out, i.keyHash)
	return out
}

// KeyHashHex returns the key hash in hex.
func (i *Identity) KeyHashHex() string {
	return hex.EncodeToString(i.keyHash)
}

// OracleAddress returns the oracle contract address.
func (i *Identity) OracleAddress() string {
	return i.oracleAddress
}

// FeedNFT returns the unit marking this node's feed UTxO.
func (i *Identity) FeedNFT() string {
	return i.feedNFT
}

// AggStateNFT returns the unit marking the aggregated state UTxO, empty
// when not configured.
func (i *Identity) AggStateNFT() string {
	return i.aggStateNFT
}
