// Package signer selects and drives the signing backend: a raw private key,
// a mnemonic-derived key, or a Ledger hardware wallet.
package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/decred/dcrd/hdkeychain/v3"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Options selects exactly one signing backend. AccountIndex is the
// hardware-wallet derivation-path index from the task document; it is only
// consulted when HDPath is left empty.
type Options struct {
	PrivateKey   string
	Mnemonic     string
	HDPath       string
	Ledger       bool
	AccountIndex int
}

// Signer produces an EIP-712 signature over the 66-byte signable payload
// (0x1901 followed by the domain and message hashes).
type Signer interface {
	Address() common.Address
	Sign(data []byte) ([]byte, error)
}

// New validates the options and constructs the selected backend. For the
// Ledger backend this doubles as the availability check: hub creation,
// wallet enumeration, open, and account derivation all happen here.
func New(opts Options) (Signer, error) {
	options := 0
	if opts.PrivateKey != "" {
		options++
	}
	if opts.Ledger {
		options++
	}
	if opts.Mnemonic != "" {
		options++
	}
	if options != 1 {
		return nil, fmt.Errorf("one (and only one) of --private-key, --ledger, --mnemonic must be set")
	}

	hdPath := opts.HDPath
	if hdPath == "" {
		hdPath = fmt.Sprintf("m/44'/60'/%d'/0/0", opts.AccountIndex)
	}
	path, err := accounts.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, err
	}

	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("error parsing private key: %w", err)
		}
		return &ecdsaSigner{key}, nil
	}

	if opts.Mnemonic != "" {
		key, err := derivePrivateKey(opts.Mnemonic, path)
		if err != nil {
			return nil, fmt.Errorf("error deriving key from mnemonic: %w", err)
		}
		return &ecdsaSigner{key}, nil
	}

	return openLedger(path)
}

type ecdsaSigner struct {
	*ecdsa.PrivateKey
}

func (s *ecdsaSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.PublicKey)
}

func (s *ecdsaSigner) Sign(data []byte) ([]byte, error) {
	signature, err := crypto.Sign(crypto.Keccak256(data), s.PrivateKey)
	if err != nil {
		return nil, err
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

type walletSigner struct {
	wallet  accounts.Wallet
	account accounts.Account
}

func (s *walletSigner) Address() common.Address {
	return s.account.Address
}

func (s *walletSigner) Sign(data []byte) ([]byte, error) {
	return s.wallet.SignData(s.account, accounts.MimetypeTypedData, data)
}

func openLedger(path accounts.DerivationPath) (Signer, error) {
	ledgerHub, err := usbwallet.NewLedgerHub()
	if err != nil {
		return nil, fmt.Errorf("error starting ledger: %w", err)
	}

	wallets := ledgerHub.Wallets()
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no ledgers found, please connect your ledger")
	}

	wallet := wallets[0]
	if err := wallet.Open(""); err != nil {
		return nil, fmt.Errorf("error opening ledger: %w", err)
	}

	account, err := wallet.Derive(path, true)
	if err != nil {
		return nil, fmt.Errorf("error deriving ledger account (please unlock and open the Ethereum app): %w", err)
	}

	return &walletSigner{
		wallet:  wallet,
		account: account,
	}, nil
}

func derivePrivateKey(mnemonic string, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	// Parse the seed string into the master BIP32 key.
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, err
	}

	privKey, err := hdkeychain.NewMaster(seed, fakeNetworkParams{})
	if err != nil {
		return nil, err
	}

	for _, child := range path {
		privKey, err = privKey.Child(child)
		if err != nil {
			return nil, err
		}
	}

	rawPrivKey, err := privKey.SerializedPrivKey()
	if err != nil {
		return nil, err
	}

	return crypto.ToECDSA(rawPrivKey)
}

type fakeNetworkParams struct{}

func (f fakeNetworkParams) HDPrivKeyVersion() [4]byte {
	return [4]byte{}
}

func (f fakeNetworkParams) HDPubKeyVersion() [4]byte {
	return [4]byte{}
}
