package builder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
	"github.com/bitcoin-coordinator/coordinator/internal/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

func testKeyService(t *testing.T) *wallet.KeyService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemonic.txt")
	if err := os.WriteFile(path, []byte(testMnemonic), 0o600); err != nil {
		t.Fatal(err)
	}
	return wallet.NewKeyService(path, "regtest")
}

func testOutpointHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestBuildProducesSignedSpeedupTx(t *testing.T) {
	b := New(testKeyService(t), "regtest", config.DefaultMaxTxWeight)

	req := coordinator.BuildRequest{
		Funding: models.FundingUTXO{Txid: testOutpointHash(1), Vout: 0, Amount: 100_000, KeyIndex: 0},
		Children: []models.ChildSpeedup{
			{Anchor: models.Outpoint{Txid: testOutpointHash(2), Vout: 1}, ChildTx: testOutpointHash(3)},
		},
		FeeRateSatVB: 10,
	}

	built, err := b.Build(req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(built.RawTx) == 0 {
		t.Fatal("Build() returned empty RawTx")
	}
	if built.Txid == (chainhash.Hash{}) {
		t.Fatal("Build() returned zero Txid")
	}
	if built.NextFunding.KeyIndex != 1 {
		t.Fatalf("NextFunding.KeyIndex = %d, want 1", built.NextFunding.KeyIndex)
	}
	if built.NextFunding.Amount <= 0 || built.NextFunding.Amount >= req.Funding.Amount {
		t.Fatalf("NextFunding.Amount = %d, want between 0 and %d", built.NextFunding.Amount, req.Funding.Amount)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	keys := testKeyService(t)
	req := coordinator.BuildRequest{
		Funding:      models.FundingUTXO{Txid: testOutpointHash(4), Vout: 0, Amount: 50_000, KeyIndex: 2},
		FeeRateSatVB: 5,
	}

	b1 := New(keys, "regtest", config.DefaultMaxTxWeight)
	out1, err := b1.Build(req)
	if err != nil {
		t.Fatalf("Build() first call error = %v", err)
	}
	b2 := New(keys, "regtest", config.DefaultMaxTxWeight)
	out2, err := b2.Build(req)
	if err != nil {
		t.Fatalf("Build() second call error = %v", err)
	}
	if out1.Txid != out2.Txid {
		t.Fatal("Build() produced different txids for identical requests")
	}
}

func TestBuildInsufficientFundsWhenFeeExceedsFunding(t *testing.T) {
	b := New(testKeyService(t), "regtest", config.DefaultMaxTxWeight)
	req := coordinator.BuildRequest{
		Funding:      models.FundingUTXO{Txid: testOutpointHash(5), Vout: 0, Amount: 100, KeyIndex: 0},
		FeeRateSatVB: 1000,
	}

	_, err := b.Build(req)
	var insufficient *coordinator.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Build() error = %v, want *InsufficientFundsError", err)
	}
	if insufficient.AvailableSats != 100 {
		t.Fatalf("AvailableSats = %d, want 100", insufficient.AvailableSats)
	}
}

func TestBuildInsufficientFundsWhenChangeWouldBeDust(t *testing.T) {
	b := New(testKeyService(t), "regtest", config.DefaultMaxTxWeight)
	req := coordinator.BuildRequest{
		Funding:      models.FundingUTXO{Txid: testOutpointHash(6), Vout: 0, Amount: 400, KeyIndex: 0},
		FeeRateSatVB: 2,
	}

	_, err := b.Build(req)
	var insufficient *coordinator.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Build() error = %v, want *InsufficientFundsError for a dust change output", err)
	}
}

func TestBuildRejectsOversizedTransaction(t *testing.T) {
	b := New(testKeyService(t), "regtest", 100) // far below even a single-input tx
	req := coordinator.BuildRequest{
		Funding:      models.FundingUTXO{Txid: testOutpointHash(7), Vout: 0, Amount: 100_000, KeyIndex: 0},
		FeeRateSatVB: 5,
	}

	_, err := b.Build(req)
	if !errors.Is(err, config.ErrTxTooLarge) {
		t.Fatalf("Build() error = %v, want ErrTxTooLarge", err)
	}
}
