package coordinator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
	"github.com/bitcoin-coordinator/coordinator/internal/store"
)

func testHash(t *testing.T, b byte) chainhash.Hash {
	t.Helper()
	var h chainhash.Hash
	h[0] = b
	return h
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "coordinator.sqlite"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		MaxUnconfirmedSpeedups: 10,
		MaxRBFAttempts:         10,
		RBFFeePercentage:       1.5,
		MinBlocksBeforeRBF:     1,
		MaxFeerateSatVB:        1000,
		MinFundingAmountSats:   10000,
		RetryAttemptsSendingTx: 3,
		RetryIntervalSeconds:   30,
		FinalizationThreshold:  6,
		MaxTxWeight:            400000,
		MaxUnconfirmedParents:  24,
	}
}

// fakeObserver is a scriptable ChainObserver: tests push MonitorNews
// entries into pending and read back Monitor/Ack calls.
type fakeObserver struct {
	ready       bool
	height      int64
	pending     []models.MonitorNews
	monitored   []chainhash.Hash
	acked       []string
	tickErr     error
	monitorErr  error
}

func (f *fakeObserver) Tick() error { return f.tickErr }
func (f *fakeObserver) IsReady() bool { return f.ready }
func (f *fakeObserver) Height() int64 { return f.height }
func (f *fakeObserver) Monitor(txid chainhash.Hash, context string) error {
	f.monitored = append(f.monitored, txid)
	return f.monitorErr
}
func (f *fakeObserver) PendingNews() ([]models.MonitorNews, error) {
	out := f.pending
	f.pending = nil
	return out, nil
}
func (f *fakeObserver) Ack(key string) error {
	f.acked = append(f.acked, key)
	return nil
}

// fakeRPC fails every Send while failSend is true.
type fakeRPC struct {
	failSend bool
	sendErr  error
	sent     [][]byte
	feeRate  int64
}

func (f *fakeRPC) Send(rawTx []byte) error {
	f.sent = append(f.sent, rawTx)
	if f.failSend {
		if f.sendErr != nil {
			return f.sendErr
		}
		return errBroadcastFailed
	}
	return nil
}
func (f *fakeRPC) EstimateFeeRateSatVB() (int64, error) { return f.feeRate, nil }

var errBroadcastFailed = &rpcError{"broadcast failed"}

type rpcError struct{ msg string }

func (e *rpcError) Error() string { return e.msg }

// fakeFeeEstimator always reports a fixed rate and a fixed should-speed-up verdict.
type fakeFeeEstimator struct {
	rate         int64
	shouldSpeed  bool
}

func (f *fakeFeeEstimator) ShouldSpeedUp(prevFeeRateSatVB int64) (bool, error) { return f.shouldSpeed, nil }
func (f *fakeFeeEstimator) EstimateFeeRateSatVB() (int64, error) { return f.rate, nil }

// fakeBuilder returns a deterministic built speedup, or insufficientErr if set.
type fakeBuilder struct {
	nextTxid       chainhash.Hash
	insufficient   *InsufficientFundsError
	buildErr       error
	builtRequests  []BuildRequest
}

func (f *fakeBuilder) Build(req BuildRequest) (*BuiltSpeedup, error) {
	f.builtRequests = append(f.builtRequests, req)
	if f.insufficient != nil {
		return nil, f.insufficient
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &BuiltSpeedup{
		Txid:  f.nextTxid,
		RawTx: []byte{0xAA},
		NextFunding: models.FundingUTXO{
			Txid:   f.nextTxid,
			Vout:   0,
			Amount: req.Funding.Amount - int64(len(req.Children))*1000,
		},
	}, nil
}

// fakeFunding always returns the canned UTXO, or nil if none set.
type fakeFunding struct {
	u *models.FundingUTXO
}

func (f *fakeFunding) GetFunding() (*models.FundingUTXO, error) { return f.u, nil }

func newTestCoordinator(t *testing.T, s *store.Store, obs *fakeObserver, rpc *fakeRPC, b *fakeBuilder, fees *fakeFeeEstimator, fund *fakeFunding) *Coordinator {
	t.Helper()
	c := New(s, obs, rpc, b, fees, fund, testConfig())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	return c
}

func TestDispatchSavesTxAndMonitors(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: true}
	c := newTestCoordinator(t, s, obs, &fakeRPC{}, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	anchor := &models.Outpoint{Txid: txid, Vout: 0}
	if err := c.Dispatch(txid, []byte{0x01}, anchor, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	got, err := c.GetTransaction(txid)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.State != models.TxToDispatch {
		t.Fatalf("GetTransaction().State = %v, want ToDispatch", got.State)
	}
	if len(obs.monitored) != 1 || obs.monitored[0] != txid {
		t.Fatalf("observer.Monitor() calls = %v, want [%v]", obs.monitored, txid)
	}
}

func TestDispatchDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: true}
	c := newTestCoordinator(t, s, obs, &fakeRPC{}, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err == nil {
		t.Fatalf("Dispatch() duplicate error = nil, want ErrDuplicateTransaction")
	}
}

func TestCancelRemovesTransaction(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: true}
	c := newTestCoordinator(t, s, obs, &fakeRPC{}, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := c.Cancel(txid); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := c.GetTransaction(txid); err == nil {
		t.Fatalf("GetTransaction() after Cancel() error = nil, want ErrNotFound")
	}
}

// TestTickDueDispatchBroadcastsReadyTransactions exercises the happy
// dispatch path end to end through Tick: a ToDispatch tx with no target
// height is broadcast on the first tick and moves to Dispatched.
func TestTickDueDispatchBroadcastsReadyTransactions(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: true, height: 100}
	rpc := &fakeRPC{}
	c := newTestCoordinator(t, s, obs, rpc, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	got, err := c.GetTransaction(txid)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.State != models.TxDispatched || got.BroadcastHeight != 100 {
		t.Fatalf("GetTransaction() = %+v, want Dispatched at height 100", got)
	}
}

// TestTickNotReadyStopsImmediately verifies step 1 of §4.F: when the
// observer isn't ready, no dispatch/retry/news work happens this tick.
func TestTickNotReadyStopsImmediately(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: false}
	rpc := &fakeRPC{}
	c := newTestCoordinator(t, s, obs, rpc, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(rpc.sent) != 0 {
		t.Fatalf("rpc.sent = %d sends, want 0 while observer not ready", len(rpc.sent))
	}
}

// TestRetryCountingExactness is spec §8 scenario 6: with a retry budget
// of 3 and a persistently failing broadcast, exactly 1+3=4
// DispatchTransactionError news entries are produced for the same txid.
func TestRetryCountingExactness(t *testing.T) {
	s := newTestStore(t)
	obs := &fakeObserver{ready: true}
	rpc := &fakeRPC{failSend: true}
	c := newTestCoordinator(t, s, obs, rpc, &fakeBuilder{}, &fakeFeeEstimator{}, &fakeFunding{})

	txid := testHash(t, 1)
	if err := c.Dispatch(txid, []byte{0x01}, nil, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// First tick: the unconditional first attempt, queued for retry with
	// NotBefore one retry interval ahead; each pass below moves the
	// (mocked) clock past it so the retry is due.
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick() #1 error = %v", err)
	}

	for i := 0; i < c.cfg.RetryAttemptsSendingTx; i++ {
		advanceRetryClock(c)
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick() retry #%d error = %v", i, err)
		}
	}

	news, err := s.GetNews()
	if err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}
	count := 0
	for _, n := range news {
		if n.Kind == models.NewsDispatchTransactionError && n.Txid == txid {
			count++
		}
	}
	if count != 1+c.cfg.RetryAttemptsSendingTx {
		t.Fatalf("DispatchTransactionError count = %d, want %d", count, 1+c.cfg.RetryAttemptsSendingTx)
	}

	// One further tick must not add a 5th, since the retry budget is spent.
	advanceRetryClock(c)
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick() after budget exhausted error = %v", err)
	}
	news, err = s.GetNews()
	if err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}
	count = 0
	for _, n := range news {
		if n.Kind == models.NewsDispatchTransactionError && n.Txid == txid {
			count++
		}
	}
	if count != 1+c.cfg.RetryAttemptsSendingTx {
		t.Fatalf("DispatchTransactionError count after exhaustion = %d, want unchanged %d", count, 1+c.cfg.RetryAttemptsSendingTx)
	}
}

// advanceRetryClock pushes the coordinator's clock far enough forward
// that any queued retry (interval RetryIntervalSeconds) is due.
func advanceRetryClock(c *Coordinator) {
	prev := c.now
	t := prev().Add(time.Duration(c.cfg.RetryIntervalSeconds+1) * time.Second)
	c.now = func() time.Time { return t }
}
