package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// Coordinator is the single entry point of the package: a persistent,
// tick-driven middleware around the dispatch state machine, the CPFP/RBF
// speedup engine, and the reorg/news handler. All exported methods are
// synchronous and take the same lock Tick holds for its duration, since
// the contract forbids calling tick concurrently with itself or with any
// other mutating operation.
type Coordinator struct {
	mu sync.Mutex

	store    Store
	observer ChainObserver
	rpc      RPCClient
	builder  Builder
	fees     FeeEstimator
	funding  FundingResolver
	cfg      *config.Config

	now func() time.Time
}

// New constructs a Coordinator wired to its collaborators. now defaults
// to time.Now; tests may override it to drive retry timing deterministically.
func New(store Store, observer ChainObserver, rpc RPCClient, builder Builder, fees FeeEstimator, funding FundingResolver, cfg *config.Config) *Coordinator {
	return &Coordinator{
		store:    store,
		observer: observer,
		rpc:      rpc,
		builder:  builder,
		fees:     fees,
		funding:  funding,
		cfg:      cfg,
		now:      time.Now,
	}
}

// IsReady reports whether the chain observer has caught up.
func (c *Coordinator) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer.IsReady()
}

// Dispatch queues a fully-signed transaction for broadcast. Fails with
// ErrDuplicateTransaction if the txid is already known to the store.
func (c *Coordinator) Dispatch(txid chainhash.Hash, rawTx []byte, anchor *models.Outpoint, context string, targetHeight *int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &models.CoordinatedTransaction{
		Txid:         txid,
		RawTx:        rawTx,
		AnchorUTXO:   anchor,
		TargetHeight: targetHeight,
		Context:      context,
	}
	if err := c.store.SaveTx(t); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, txid)
	}
	return c.observer.Monitor(txid, context)
}

// Monitor registers an item with the chain observer without creating a
// CoordinatedTransaction, for callers that only want status updates.
func (c *Coordinator) Monitor(txid chainhash.Hash, context string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer.Monitor(txid, context)
}

// Cancel removes a transaction from the store. It cannot recall a
// broadcast already sent.
func (c *Coordinator) Cancel(txid chainhash.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.GetTx(txid); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, txid)
	}
	return c.store.RemoveTx(txid)
}

// AddFunding replaces the active funding seed with a freshly supplied UTXO.
func (c *Coordinator) AddFunding(u models.FundingUTXO) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidFundingUTXO)
	}
	return c.store.AddFunding(u)
}

// GetTransaction returns a stored CoordinatedTransaction's current status.
func (c *Coordinator) GetTransaction(txid chainhash.Hash) (*models.CoordinatedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.store.GetTx(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, txid)
	}
	return t, nil
}

// GetNews returns the combined monitor-news and coordinator-news feeds.
func (c *Coordinator) GetNews() (*models.NewsFeed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	monitorNews, err := c.store.GetMonitorNews()
	if err != nil {
		return nil, err
	}
	coordinatorNews, err := c.store.GetNews()
	if err != nil {
		return nil, err
	}
	return &models.NewsFeed{MonitorNews: monitorNews, CoordinatorNews: coordinatorNews}, nil
}

// AckNews acknowledges one or both halves of a news feed entry.
// Idempotent: acking the same key twice is a no-op on the second call.
func (c *Coordinator) AckNews(ack models.AckNews) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ack.MonitorKey != "" {
		if err := c.store.AckMonitorNews(ack.MonitorKey); err != nil {
			return err
		}
	}
	if ack.CoordinatorKey != "" {
		if err := c.store.AckNews(ack.CoordinatorKey); err != nil {
			return err
		}
	}
	return nil
}

// FundForSpeedup couples a dedicated funding UTXO to a specific set of
// already-dispatched children, bypassing the general funding resolver
// for that one speedup.
func (c *Coordinator) FundForSpeedup(txids []chainhash.Hash, funding models.FundingUTXO, context string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(txids) == 0 {
		return ErrEmptyTxids
	}

	var children []models.ChildSpeedup
	for _, txid := range txids {
		t, err := c.store.GetTx(txid)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, txid)
		}
		if t.AnchorUTXO == nil {
			return fmt.Errorf("%w: %s has no anchor utxo", ErrInvalidFundingUTXO, txid)
		}
		children = append(children, models.ChildSpeedup{Anchor: *t.AnchorUTXO, ChildTx: txid, Context: t.Context})
	}

	feeRate, err := c.fees.EstimateFeeRateSatVB()
	if err != nil {
		return err
	}
	return c.dispatchSpeedup(children, funding, feeRate, false, nil)
}
