package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Anvil's first well-known development key.
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewRequiresExactlyOneBackend(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"none", Options{}},
		{"key and ledger", Options{PrivateKey: devKey, Ledger: true}},
		{"key and mnemonic", Options{PrivateKey: devKey, Mnemonic: "test test"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "one (and only one)")
		})
	}
}

func TestNewRejectsBadPrivateKey(t *testing.T) {
	_, err := New(Options{PrivateKey: "not-hex"})
	require.Error(t, err)
}

func TestNewRejectsBadHDPath(t *testing.T) {
	_, err := New(Options{PrivateKey: devKey, HDPath: "not/a/path"})
	require.Error(t, err)
}

func TestECDSASignerAddress(t *testing.T) {
	s, err := New(Options{PrivateKey: devKey})
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())
}

func TestECDSASignatureRecoversSigner(t *testing.T) {
	s, err := New(Options{PrivateKey: devKey})
	require.NoError(t, err)

	payload := append([]byte{0x19, 0x01}, make([]byte, 64)...)
	signature, err := s.Sign(payload)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	// Undo the legacy v offset and recover the signing address.
	recoverable := make([]byte, 65)
	copy(recoverable, signature)
	recoverable[crypto.RecoveryIDOffset] -= 27

	pubkey, err := crypto.SigToPub(crypto.Keccak256(payload), recoverable)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pubkey))
}

func TestMnemonicSignerDerivesAccountIndex(t *testing.T) {
	mnemonic := "test test test test test test test test test test test junk"

	account0, err := New(Options{Mnemonic: mnemonic})
	require.NoError(t, err)
	account1, err := New(Options{Mnemonic: mnemonic, AccountIndex: 1})
	require.NoError(t, err)

	// Different ledger account indexes select different on-device accounts.
	assert.NotEqual(t, account0.Address(), account1.Address())
}
