package wallet

import (
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
)

// KeyService derives BTC private keys on demand from the mnemonic file.
// The mnemonic is read fresh on each call to minimize time secrets spend
// in memory.
type KeyService struct {
	mnemonicFilePath string
	network          string
}

// NewKeyService creates a key derivation service. mnemonicFilePath is the
// path to the file containing the 24-word mnemonic.
func NewKeyService(mnemonicFilePath, network string) *KeyService {
	return &KeyService{mnemonicFilePath: mnemonicFilePath, network: network}
}

// DeriveBTCPrivateKey derives the BTC private key at the given address
// index via m/84'/0'/0'/0/N (mainnet) or m/84'/1'/0'/0/N (testnet/regtest).
// The caller MUST zero the returned key after use.
func (ks *KeyService) DeriveBTCPrivateKey(index uint32) (*btcec.PrivateKey, error) {
	if ks.mnemonicFilePath == "" {
		return nil, config.ErrMnemonicFileNotSet
	}

	masterKey, err := ks.deriveMasterKey()
	if err != nil {
		return nil, fmt.Errorf("derive master key for BTC key at index %d: %w", index, err)
	}

	net := NetworkParams(ks.network)
	privKey, err := deriveBTCPrivKeyAtIndex(masterKey, index, net)
	if err != nil {
		return nil, fmt.Errorf("%w: BTC index %d: %s", config.ErrKeyDerivation, index, err)
	}

	slog.Debug("BTC private key derived", "index", index)
	return privKey, nil
}

// DeriveBTCAddress derives the BTC address at the given index, for
// labeling a change output the private key derivation path above
// controls.
func (ks *KeyService) DeriveBTCAddress(index uint32) (string, error) {
	masterKey, err := ks.deriveMasterKey()
	if err != nil {
		return "", fmt.Errorf("derive master key for BTC address at index %d: %w", index, err)
	}
	return DeriveBTCAddress(masterKey, index, NetworkParams(ks.network))
}

func (ks *KeyService) deriveMasterKey() (*hdkeychain.ExtendedKey, error) {
	mnemonic, err := ReadMnemonicFromFile(ks.mnemonicFilePath)
	if err != nil {
		return nil, fmt.Errorf("read mnemonic: %w", err)
	}
	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("mnemonic to seed: %w", err)
	}
	net := NetworkParams(ks.network)
	return DeriveMasterKey(seed, net)
}

// deriveBTCPrivKeyAtIndex mirrors DeriveBTCAddress's derivation path but
// returns the private key instead of the address built from its pubkey.
func deriveBTCPrivKeyAtIndex(masterKey *hdkeychain.ExtendedKey, index uint32, net *chaincfg.Params) (*btcec.PrivateKey, error) {
	coinType := uint32(config.BTCCoinType)
	if net == &chaincfg.TestNet3Params || net == &chaincfg.RegressionNetParams {
		coinType = uint32(config.BTCTestCoinType)
	}

	purpose, err := masterKey.Derive(hdkeychain.HardenedKeyStart + uint32(config.BIP84Purpose))
	if err != nil {
		return nil, fmt.Errorf("derive purpose key: %w", err)
	}
	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + coinType)
	if err != nil {
		return nil, fmt.Errorf("derive coin key: %w", err)
	}
	account, err := coin.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("derive account key: %w", err)
	}
	change, err := account.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("derive change key: %w", err)
	}
	child, err := change.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("derive child key at index %d: %w", index, err)
	}
	return child.ECPrivKey()
}
