package store

import (
	"errors"
	"testing"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

func saveSpeedup(t *testing.T, s *Store, id byte, state models.SpeedupState, isRBF bool, children int) *models.SpeedupTransaction {
	t.Helper()
	var kids []models.ChildSpeedup
	for i := 0; i < children; i++ {
		kids = append(kids, models.ChildSpeedup{ChildTx: testHash(t, id+byte(i)+100)})
	}
	sp := &models.SpeedupTransaction{
		Txid:     testHash(t, id),
		Children: kids,
		IsRBF:    isRBF,
		State:    state,
	}
	if err := s.SaveSpeedup(sp); err != nil {
		t.Fatalf("SaveSpeedup(%d) error = %v", id, err)
	}
	return sp
}

func TestSaveSpeedupAssignsSequence(t *testing.T) {
	s := newTestStore(t)
	a := saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 0)
	b := saveSpeedup(t, s, 2, models.SpeedupDispatched, false, 0)
	if a.Sequence != 1 || b.Sequence != 2 {
		t.Fatalf("sequences = %d, %d, want 1, 2", a.Sequence, b.Sequence)
	}
}

func TestSaveSpeedupDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 0)
	err := s.SaveSpeedup(&models.SpeedupTransaction{Txid: testHash(t, 1)})
	if !errors.Is(err, ErrAlreadyPresent) {
		t.Fatalf("SaveSpeedup() duplicate error = %v, want ErrAlreadyPresent", err)
	}
}

func TestUpdateSpeedupStateFollowsMatrix(t *testing.T) {
	s := newTestStore(t)
	txid := testHash(t, 1)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 0)

	if err := s.UpdateSpeedupState(txid, models.SpeedupConfirmed); err != nil {
		t.Fatalf("UpdateSpeedupState(Confirmed) error = %v", err)
	}
	if err := s.UpdateSpeedupState(txid, models.SpeedupFinalized); err != nil {
		t.Fatalf("UpdateSpeedupState(Finalized) error = %v", err)
	}
	err := s.UpdateSpeedupState(txid, models.SpeedupConfirmed)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("UpdateSpeedupState(Finalized->Confirmed) error = %v, want ErrIllegalTransition", err)
	}
}

// TestGetPendingVsGetAllAcrossCheckpoint exercises the read-time cut: the
// log is never physically pruned, so GetAllPendingSpeedups always returns
// every entry while GetPendingSpeedups stops at (exclusive of) the most
// recent Finalized entry.
func TestGetPendingVsGetAllAcrossCheckpoint(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 0)
	if err := s.UpdateSpeedupState(testHash(t, 1), models.SpeedupConfirmed); err != nil {
		t.Fatalf("UpdateSpeedupState() error = %v", err)
	}
	if err := s.UpdateSpeedupState(testHash(t, 1), models.SpeedupFinalized); err != nil {
		t.Fatalf("UpdateSpeedupState() error = %v", err)
	}
	saveSpeedup(t, s, 2, models.SpeedupDispatched, false, 0)
	saveSpeedup(t, s, 3, models.SpeedupDispatched, false, 0)

	all, err := s.GetAllPendingSpeedups()
	if err != nil {
		t.Fatalf("GetAllPendingSpeedups() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("GetAllPendingSpeedups() len = %d, want 3", len(all))
	}
	if all[0].Txid != testHash(t, 3) {
		t.Fatalf("GetAllPendingSpeedups()[0] = %v, want newest first", all[0].Txid)
	}

	pending, err := s.GetPendingSpeedups()
	if err != nil {
		t.Fatalf("GetPendingSpeedups() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("GetPendingSpeedups() len = %d, want 2 (excludes Finalized checkpoint)", len(pending))
	}
	if pending[0].Txid != testHash(t, 2) || pending[1].Txid != testHash(t, 3) {
		t.Fatalf("GetPendingSpeedups() = %v, want [2, 3] chronological", pending)
	}
}

func TestHasReachedMaxUnconfirmedSpeedups(t *testing.T) {
	s := newTestStore(t)
	for i := byte(1); i <= 3; i++ {
		saveSpeedup(t, s, i, models.SpeedupDispatched, false, 0)
	}

	reached, err := s.HasReachedMaxUnconfirmedSpeedups(3)
	if err != nil {
		t.Fatalf("HasReachedMaxUnconfirmedSpeedups() error = %v", err)
	}
	if !reached {
		t.Fatalf("HasReachedMaxUnconfirmedSpeedups(3) = false, want true with 3 dispatched")
	}

	reached, err = s.HasReachedMaxUnconfirmedSpeedups(4)
	if err != nil {
		t.Fatalf("HasReachedMaxUnconfirmedSpeedups() error = %v", err)
	}
	if reached {
		t.Fatalf("HasReachedMaxUnconfirmedSpeedups(4) = true, want false with only 3 dispatched")
	}
}

func TestGetAvailableUnconfirmedTxsBudget(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 2) // uses 3 (2 children + 1)
	saveSpeedup(t, s, 2, models.SpeedupDispatched, false, 0) // uses 1

	remaining, err := s.GetAvailableUnconfirmedTxs(10)
	if err != nil {
		t.Fatalf("GetAvailableUnconfirmedTxs() error = %v", err)
	}
	if remaining != 6 {
		t.Fatalf("GetAvailableUnconfirmedTxs(10) = %d, want 6", remaining)
	}
}

func TestGetAvailableUnconfirmedTxsCappedByUnconfirmedRBF(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, true, 0)

	remaining, err := s.GetAvailableUnconfirmedTxs(10)
	if err != nil {
		t.Fatalf("GetAvailableUnconfirmedTxs() error = %v", err)
	}
	if remaining != 0 {
		t.Fatalf("GetAvailableUnconfirmedTxs() = %d, want 0 when tail is an unconfirmed RBF", remaining)
	}
}

// TestGetLastSpeedupToRBF builds a base CPFP transaction followed by two
// RBF replacement attempts still in flight. Walking from newest to oldest,
// both replacements are skipped and the base transaction — the one that
// actually needs to be replaced next — is returned, along with how many
// replacement attempts have already been made against it.
func TestGetLastSpeedupToRBF(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupDispatched, false, 0)
	saveSpeedup(t, s, 2, models.SpeedupDispatched, true, 0)
	saveSpeedup(t, s, 3, models.SpeedupDispatched, true, 0)

	head, count, err := s.GetLastSpeedupToRBF()
	if err != nil {
		t.Fatalf("GetLastSpeedupToRBF() error = %v", err)
	}
	if head == nil || head.Txid != testHash(t, 1) {
		t.Fatalf("GetLastSpeedupToRBF() head = %v, want entry 1 (the base transaction)", head)
	}
	if count != 2 {
		t.Fatalf("GetLastSpeedupToRBF() count = %d, want 2", count)
	}
}

func TestGetLastSpeedupToRBFNoneWhenConfirmed(t *testing.T) {
	s := newTestStore(t)
	saveSpeedup(t, s, 1, models.SpeedupConfirmed, true, 0)

	head, _, err := s.GetLastSpeedupToRBF()
	if err != nil {
		t.Fatalf("GetLastSpeedupToRBF() error = %v", err)
	}
	if head != nil {
		t.Fatalf("GetLastSpeedupToRBF() = %v, want nil once the tail is confirmed", head)
	}
}

func TestAddFundingCreatesVisibleCheckpoint(t *testing.T) {
	s := newTestStore(t)
	funding := models.FundingUTXO{Txid: testHash(t, 5), Vout: 0, Amount: 50000, KeyIndex: 3}
	if err := s.AddFunding(funding); err != nil {
		t.Fatalf("AddFunding() error = %v", err)
	}

	all, err := s.GetAllPendingSpeedups()
	if err != nil {
		t.Fatalf("GetAllPendingSpeedups() error = %v", err)
	}
	if len(all) != 1 || all[0].State != models.SpeedupFinalized {
		t.Fatalf("GetAllPendingSpeedups() = %+v, want single Finalized checkpoint", all)
	}
	if all[0].NextFunding.Amount != 50000 {
		t.Fatalf("checkpoint NextFunding = %+v, want amount 50000", all[0].NextFunding)
	}
}
