package keystore

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testConfig() Config {
	return Config{
		Mnemonic:      testMnemonic,
		OracleAddress: "addr1_oracle",
		FeedNFT:       "policyfeed",
		AggStateNFT:   "policyagg",
	}
}

func TestFromMnemonic_Deterministic(t *testing.T) {
	a, err := FromMnemonic(testConfig())
	require.NoError(t, err)
	b, err := FromMnemonic(testConfig())
	require.NoError(t, err)

	assert.Equal(t, a.PubKey(), b.PubKey())
	assert.Equal(t, a.KeyHashHex(), b.KeyHashHex())
	assert.Len(t, a.KeyHash(), 28)
}

func TestIdentity_SignVerifies(t *testing.T) {
	id, err := FromMnemonic(testConfig())
	require.NoError(t, err)

	msg := []byte("rate update")
	sig := id.Sign(msg)
	assert.True(t, ed25519.Verify(id.PubKey(), msg, sig))
	assert.False(t, ed25519.Verify(id.PubKey(), []byte("tampered"), sig))
}

func TestFromMnemonic_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.Mnemonic = "not a mnemonic"
	_, err := FromMnemonic(cfg)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	cfg = testConfig()
	cfg.OracleAddress = ""
	_, err = FromMnemonic(cfg)
	assert.ErrorIs(t, err, ErrMissingOracleAddress)

	cfg = testConfig()
	cfg.FeedNFT = ""
	_, err = FromMnemonic(cfg)
	assert.ErrorIs(t, err, ErrMissingFeedNFT)
}

func TestIdentity_Accessors(t *testing.T) {
	id, err := FromMnemonic(testConfig())
	require.NoError(t, err)
	assert.Equal(t, "addr1_oracle", id.OracleAddress())
	assert.Equal(t, "policyfeed", id.FeedNFT())
	assert.Equal(t, "policyagg", id.AggStateNFT())
}
