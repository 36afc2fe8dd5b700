// Package models defines the entities the coordinator persists and
// exchanges with its callers: coordinated transactions, speedup
// transactions, funding UTXOs, retry bookkeeping, and the caller-facing
// news feed. Lifecycle states and news kinds are closed sum types,
// never booleans or free-form strings.
package models

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TransactionState is the lifecycle state of a CoordinatedTransaction.
type TransactionState string

const (
	TxToDispatch TransactionState = "TO_DISPATCH"
	TxDispatched TransactionState = "DISPATCHED"
	TxConfirmed  TransactionState = "CONFIRMED"
	TxFinalized  TransactionState = "FINALIZED"
)

// SpeedupState is the lifecycle state of a SpeedupTransaction.
type SpeedupState string

const (
	SpeedupDispatched SpeedupState = "DISPATCHED"
	SpeedupConfirmed  SpeedupState = "CONFIRMED"
	SpeedupFinalized  SpeedupState = "FINALIZED"
)

// Outpoint identifies a single transaction output.
type Outpoint struct {
	Txid chainhash.Hash
	Vout uint32
}

// RetryInfo is the retry bookkeeping carried alongside any retryable
// record (spec: "retry metadata adjacent to the record, not centralized").
type RetryInfo struct {
	Count      int
	LastAttempt time.Time
	NotBefore  time.Time
}

// RetryPolicy is caller-supplied, optional, per CoordinatedTransaction.
type RetryPolicy struct {
	MaxAttempts      int
	IntervalSeconds  int
}

// CoordinatedTransaction is a caller-submitted, fully-signed transaction
// driven through the dispatch lifecycle.
type CoordinatedTransaction struct {
	Txid               chainhash.Hash
	RawTx              []byte // serialized wire.MsgTx
	AnchorUTXO         *Outpoint
	TargetHeight       *int64
	RetryPolicy        *RetryPolicy
	BroadcastHeight    int64 // 0 means not yet broadcast
	State              TransactionState
	Context            string
	Retry              *RetryInfo
}

// ChildSpeedup is one child accelerated by a SpeedupTransaction.
type ChildSpeedup struct {
	Anchor  Outpoint
	ChildTx chainhash.Hash
	Context string
}

// FundingUTXO is an unspent output available to pay for speedup
// transactions. KeyIndex is the HD derivation index of the key that
// controls it.
type FundingUTXO struct {
	Txid     chainhash.Hash
	Vout     uint32
	Amount   int64
	KeyIndex uint32
}

// SpeedupTransaction is a coordinator-constructed transaction whose sole
// purpose is to accelerate one or more children via CPFP, or to replace
// a prior speedup via RBF.
type SpeedupTransaction struct {
	Txid            chainhash.Hash
	RawTx           []byte // serialized wire.MsgTx, kept for retrying a failed broadcast
	Children        []ChildSpeedup
	PreviousFunding FundingUTXO
	NextFunding     FundingUTXO
	IsRBF           bool
	BroadcastHeight int64
	FeeRateSatVB    int64
	State           SpeedupState
	Retry           *RetryInfo
	// Sequence orders the append-only log; assigned by the store on save.
	Sequence int64
}

// NewsKind is the closed set of caller-visible coordinator news.
type NewsKind string

const (
	NewsDispatchTransactionError NewsKind = "DISPATCH_TRANSACTION_ERROR"
	NewsDispatchSpeedUpError     NewsKind = "DISPATCH_SPEEDUP_ERROR"
	NewsInsufficientFunds        NewsKind = "INSUFFICIENT_FUNDS"
	NewsNewSpeedUp               NewsKind = "NEW_SPEEDUP"
	NewsEstimateFeerateTooHigh   NewsKind = "ESTIMATE_FEERATE_TOO_HIGH"
	NewsFundingNotFound          NewsKind = "FUNDING_NOT_FOUND"
)

// NewsEntry is a tagged-variant record published to the caller. Only the
// fields relevant to Kind are populated; AckKey is the discriminant used
// by ack_news to dedupe/remove this specific entry.
type NewsEntry struct {
	Kind NewsKind
	AckKey string

	// DispatchTransactionError
	Txid    chainhash.Hash
	Context string
	Reason  string

	// DispatchSpeedUpError
	ChildTxids  []chainhash.Hash
	Contexts    []string
	FundingTxid chainhash.Hash

	// InsufficientFunds
	RequiredSats  int64
	AvailableSats int64

	// NewSpeedUp
	ChildTxid    chainhash.Hash
	SpeedupCount int

	// EstimateFeerateTooHigh
	EstimatedSatVB int64
	CapSatVB       int64

	CreatedAt time.Time
}

// MonitorStatus describes a chain observer's view of a single tracked
// item as delivered in a MonitorNews entry.
type MonitorStatus string

const (
	StatusNotFound  MonitorStatus = "NOT_FOUND"
	StatusConfirmed MonitorStatus = "CONFIRMED"
	StatusFinalized MonitorStatus = "FINALIZED"
	StatusOrphaned  MonitorStatus = "ORPHANED"
)

// MonitorNews mirrors a chain-observer event back to the caller.
type MonitorNews struct {
	Txid          chainhash.Hash
	Status        MonitorStatus
	Confirmations int64
	Context       string
	AckKey        string
}

func (s MonitorStatus) IsConfirmed() bool {
	return s == StatusConfirmed || s == StatusFinalized
}

func (s MonitorStatus) IsOrphan() bool {
	return s == StatusOrphaned
}

// NewsFeed is the combined response of get_news().
type NewsFeed struct {
	MonitorNews     []MonitorNews
	CoordinatorNews []NewsEntry
}

// AckNews identifies a single news entry to acknowledge, scoped to
// either the monitor feed or the coordinator feed.
type AckNews struct {
	MonitorKey     string
	CoordinatorKey string
}

// RetryQueueEntry pairs an entity id with its retry bookkeeping for the
// store's bounded retry-scan queries.
type RetryQueueEntry struct {
	EntityID string
	Info     RetryInfo
}
