package coordinator

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// Store is the subset of internal/store.Store the coordinator depends
// on, expressed as a narrow interface so tests can supply an in-memory
// fake instead of a sqlite fixture.
type Store interface {
	SaveTx(t *models.CoordinatedTransaction) error
	GetTx(txid chainhash.Hash) (*models.CoordinatedTransaction, error)
	UpdateTxState(txid chainhash.Hash, newState models.TransactionState) error
	MarkTxDispatched(txid chainhash.Hash, broadcastHeight int64) error
	GetTxsInProgress() ([]*models.CoordinatedTransaction, error)
	RemoveTx(txid chainhash.Hash) error

	QueueTxForRetry(txid chainhash.Hash, now time.Time, intervalSeconds int) error
	IncrementTxRetryCount(txid chainhash.Hash) error
	DequeueTxRetry(txid chainhash.Hash) error
	GetTxRetry(txid chainhash.Hash) (models.RetryInfo, error)
	GetTxsForRetry(now time.Time, maxRetries, intervalSeconds int) ([]*models.CoordinatedTransaction, error)

	SaveSpeedup(sp *models.SpeedupTransaction) error
	GetSpeedup(txid chainhash.Hash) (*models.SpeedupTransaction, error)
	UpdateSpeedupState(txid chainhash.Hash, newState models.SpeedupState) error
	MarkSpeedupBroadcast(txid chainhash.Hash, broadcastHeight int64) error
	GetAllPendingSpeedups() ([]*models.SpeedupTransaction, error)
	GetPendingSpeedups() ([]*models.SpeedupTransaction, error)
	HasReachedMaxUnconfirmedSpeedups(max int) (bool, error)
	GetAvailableUnconfirmedTxs(maxUnconfirmedParents int) (int, error)
	GetLastSpeedupToRBF() (*models.SpeedupTransaction, int, error)
	AddFunding(u models.FundingUTXO) error

	QueueSpeedupForRetry(txid chainhash.Hash, now time.Time, intervalSeconds int) error
	IncrementSpeedupRetryCount(txid chainhash.Hash) error
	DequeueSpeedupRetry(txid chainhash.Hash) error
	GetSpeedupRetry(txid chainhash.Hash) (models.RetryInfo, error)
	GetSpeedupsForRetry(now time.Time, maxRetries, intervalSeconds int) ([]*models.SpeedupTransaction, error)

	AddNews(n models.NewsEntry) error
	HasNews(ackKey string) (bool, error)
	GetNews() ([]models.NewsEntry, error)
	AckNews(ackKey string) error

	AddMonitorNews(n models.MonitorNews) error
	GetMonitorNews() ([]models.MonitorNews, error)
	AckMonitorNews(ackKey string) error
}

// FundingResolver is the subset of internal/funding.Resolver needed by
// the speedup engine.
type FundingResolver interface {
	GetFunding() (*models.FundingUTXO, error)
}
