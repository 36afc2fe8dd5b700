package store

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

func TestAddAndGetNews(t *testing.T) {
	s := newTestStore(t)
	n := models.NewsEntry{
		Kind:          models.NewsInsufficientFunds,
		AckKey:        "insufficient-funds-1",
		RequiredSats:  10000,
		AvailableSats: 4000,
	}
	if err := s.AddNews(n); err != nil {
		t.Fatalf("AddNews() error = %v", err)
	}

	got, err := s.GetNews()
	if err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}
	if len(got) != 1 || got[0].AckKey != n.AckKey || got[0].RequiredSats != 10000 {
		t.Fatalf("GetNews() = %+v, want one entry matching %+v", got, n)
	}
}

func TestAckNewsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	n := models.NewsEntry{Kind: models.NewsFundingNotFound, AckKey: "funding-not-found-1"}
	if err := s.AddNews(n); err != nil {
		t.Fatalf("AddNews() error = %v", err)
	}

	if err := s.AckNews("funding-not-found-1"); err != nil {
		t.Fatalf("AckNews() error = %v", err)
	}
	if err := s.AckNews("funding-not-found-1"); err != nil {
		t.Fatalf("AckNews() second call error = %v", err)
	}

	got, err := s.GetNews()
	if err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetNews() after ack = %+v, want empty", got)
	}
}

func TestHasNews(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.HasNews("absent")
	if err != nil {
		t.Fatalf("HasNews() error = %v", err)
	}
	if ok {
		t.Fatalf("HasNews() = true, want false before AddNews")
	}

	if err := s.AddNews(models.NewsEntry{Kind: models.NewsEstimateFeerateTooHigh, AckKey: "fee-too-high-1"}); err != nil {
		t.Fatalf("AddNews() error = %v", err)
	}
	ok, err = s.HasNews("fee-too-high-1")
	if err != nil {
		t.Fatalf("HasNews() error = %v", err)
	}
	if !ok {
		t.Fatalf("HasNews() = false, want true after AddNews")
	}
}

func TestNewsChildTxidsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	n := models.NewsEntry{
		Kind:        models.NewsDispatchSpeedUpError,
		AckKey:      "speedup-error-1",
		ChildTxids:  []chainhash.Hash{testHash(t, 5), testHash(t, 6)},
		Contexts:    []string{"ctx-a", "ctx-b"},
		FundingTxid: testHash(t, 7),
	}
	if err := s.AddNews(n); err != nil {
		t.Fatalf("AddNews() error = %v", err)
	}

	got, err := s.GetNews()
	if err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetNews() len = %d, want 1", len(got))
	}
	entry := got[0]
	if len(entry.ChildTxids) != 2 || entry.ChildTxids[0] != testHash(t, 5) || entry.ChildTxids[1] != testHash(t, 6) {
		t.Fatalf("GetNews() ChildTxids = %v, want round-tripped hashes", entry.ChildTxids)
	}
	if entry.FundingTxid != testHash(t, 7) {
		t.Fatalf("GetNews() FundingTxid = %v, want %v", entry.FundingTxid, testHash(t, 7))
	}
}

func TestMonitorNewsLifecycle(t *testing.T) {
	s := newTestStore(t)
	n := models.MonitorNews{
		Txid:          testHash(t, 1),
		Status:        models.StatusConfirmed,
		Confirmations: 2,
		AckKey:        "monitor-1",
	}
	if err := s.AddMonitorNews(n); err != nil {
		t.Fatalf("AddMonitorNews() error = %v", err)
	}

	got, err := s.GetMonitorNews()
	if err != nil {
		t.Fatalf("GetMonitorNews() error = %v", err)
	}
	if len(got) != 1 || got[0].Status != models.StatusConfirmed {
		t.Fatalf("GetMonitorNews() = %+v, want one Confirmed entry", got)
	}

	if err := s.AckMonitorNews("monitor-1"); err != nil {
		t.Fatalf("AckMonitorNews() error = %v", err)
	}
	got, err = s.GetMonitorNews()
	if err != nil {
		t.Fatalf("GetMonitorNews() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetMonitorNews() after ack = %+v, want empty", got)
	}
}
