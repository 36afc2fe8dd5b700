package funding

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type fakeLog struct {
	all     []*models.SpeedupTransaction
	reached bool
}

func (f *fakeLog) GetAllPendingSpeedups() ([]*models.SpeedupTransaction, error) {
	return f.all, nil
}

func (f *fakeLog) HasReachedMaxUnconfirmedSpeedups(max int) (bool, error) {
	return f.reached, nil
}

func hashByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func funding(amount int64) models.FundingUTXO {
	return models.FundingUTXO{Amount: amount}
}

func TestGetFundingReturnsNilWhenMaxUnconfirmedReached(t *testing.T) {
	r := New(&fakeLog{reached: true}, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u != nil {
		t.Fatalf("GetFunding() = %v, want nil when max unconfirmed speedups reached", u)
	}
}

func TestGetFundingPhaseAFinalizedCheckpoint(t *testing.T) {
	log := &fakeLog{all: []*models.SpeedupTransaction{
		{Txid: hashByte(1), NextFunding: funding(1000), State: models.SpeedupFinalized},
	}}
	r := New(log, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u == nil || u.Amount != 1000 {
		t.Fatalf("GetFunding() = %v, want the Finalized entry's NextFunding", u)
	}
}

func TestGetFundingPhaseAUnconfirmedNonRBFChains(t *testing.T) {
	log := &fakeLog{all: []*models.SpeedupTransaction{
		{Txid: hashByte(1), NextFunding: funding(500), State: models.SpeedupDispatched, IsRBF: false},
	}}
	r := New(log, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u == nil || u.Amount != 500 {
		t.Fatalf("GetFunding() = %v, want the unconfirmed non-RBF entry's NextFunding", u)
	}
}

func TestGetFundingPhaseBConfirmedRBFEndsSearch(t *testing.T) {
	// Newest-to-oldest: unconfirmed RBF (enters phase B), then confirmed RBF.
	log := &fakeLog{all: []*models.SpeedupTransaction{
		{Txid: hashByte(1), NextFunding: funding(800), State: models.SpeedupDispatched, IsRBF: true},
		{Txid: hashByte(2), NextFunding: funding(900), State: models.SpeedupConfirmed, IsRBF: true},
	}}
	r := New(log, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u == nil || u.Amount != 900 {
		t.Fatalf("GetFunding() = %v, want the confirmed RBF entry's NextFunding", u)
	}
}

func TestGetFundingPhaseBGivesUpOnUnconfirmedNonRBF(t *testing.T) {
	log := &fakeLog{all: []*models.SpeedupTransaction{
		{Txid: hashByte(1), NextFunding: funding(800), State: models.SpeedupDispatched, IsRBF: true},
		{Txid: hashByte(2), NextFunding: funding(900), State: models.SpeedupDispatched, IsRBF: false},
	}}
	r := New(log, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u != nil {
		t.Fatalf("GetFunding() = %v, want nil: the non-RBF entry needing confirmation itself blocks funding", u)
	}
}

func TestGetFundingReturnsNilOnExhaustedLog(t *testing.T) {
	log := &fakeLog{all: []*models.SpeedupTransaction{
		{Txid: hashByte(1), NextFunding: funding(800), State: models.SpeedupDispatched, IsRBF: true},
	}}
	r := New(log, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u != nil {
		t.Fatalf("GetFunding() = %v, want nil when the log exhausts still seeking a confirmed RBF", u)
	}
}

func TestGetFundingEmptyLog(t *testing.T) {
	r := New(&fakeLog{}, 10)
	u, err := r.GetFunding()
	if err != nil {
		t.Fatalf("GetFunding() error = %v", err)
	}
	if u != nil {
		t.Fatalf("GetFunding() = %v, want nil for an empty log", u)
	}
}
