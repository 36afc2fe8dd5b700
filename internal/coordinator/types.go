// Package coordinator implements the dispatch state machine, the CPFP/RBF
// speedup engine, the reorg and news handler, and the tick driver that
// ties them together around a store and a funding resolver.
package coordinator

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// ChainObserver is the narrow capability set the coordinator needs from
// a chain indexer: advance its own view of the chain, report readiness,
// register items to watch, and deliver/acknowledge news about them.
// The coordinator never indexes the chain itself.
type ChainObserver interface {
	Tick() error
	IsReady() bool
	Height() int64
	Monitor(txid chainhash.Hash, context string) error
	PendingNews() ([]models.MonitorNews, error)
	Ack(key string) error
}

// RPCClient is the narrow capability set needed to broadcast and to read
// back a fee-rate contract from the node. It never queries transaction
// status — that is ChainObserver's job.
type RPCClient interface {
	Send(rawTx []byte) error
	EstimateFeeRateSatVB() (int64, error)
}

// FeeEstimator applies the speedup-necessity fee policy of spec §4.D
// step 1: given the previous speedup's fee rate, should the engine
// attempt another speedup.
type FeeEstimator interface {
	ShouldSpeedUp(prevFeeRateSatVB int64) (bool, error)
	EstimateFeeRateSatVB() (int64, error)
}

// BuildRequest describes one CPFP or RBF speedup to construct.
type BuildRequest struct {
	Funding      models.FundingUTXO
	Children     []models.ChildSpeedup
	FeeRateSatVB int64
	IsRBF        bool
	// ReplacedOutpoint identifies the previous speedup's funding input
	// when IsRBF is true, since an RBF spends the same inputs as the
	// transaction it replaces rather than chaining off them.
	ReplacedOutpoint *models.Outpoint
}

// BuiltSpeedup is the result of constructing and signing a speedup.
type BuiltSpeedup struct {
	Txid        chainhash.Hash
	RawTx       []byte
	NextFunding models.FundingUTXO
}

// InsufficientFundsError is returned by Builder.Build when the funding
// UTXO cannot cover the requested fee rate. RequiredSats/AvailableSats
// feed the InsufficientFunds news entry directly.
type InsufficientFundsError struct {
	RequiredSats  int64
	AvailableSats int64
}

func (e *InsufficientFundsError) Error() string {
	return "builder: insufficient funds"
}

// Builder constructs and signs CPFP/RBF speedup transactions.
type Builder interface {
	Build(req BuildRequest) (*BuiltSpeedup, error)
}
