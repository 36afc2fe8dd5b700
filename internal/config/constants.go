package config

import "time"

// BIP-32 / BIP-84 Derivation Path (the funding wallet is Native SegWit only)
const (
	BIP84Purpose    = 84 // BIP-84 purpose for Native SegWit (bech32)
	BTCCoinType     = 0  // m/84'/0'/0'/0/N
	BTCTestCoinType = 1  // m/84'/1'/0'/0/N (testnet/regtest)
)

// Pagination limits (the news and transaction listing endpoints return every
// entry and do not read these)
const (
	DefaultPage     = 1
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// RPC Client
const (
	RPCRequestTimeout          = 15 * time.Second
	RPCMaxRetries              = 3
	RPCRetryBaseDelay          = 1 * time.Second
	RPCRateLimitPerSec         = 10
	RPCCircuitBreakerThreshold = 5
	RPCCircuitBreakerCooldown  = 30 * time.Second
)

// Server
const (
	ServerPort           = 8090
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 60 * time.Second
	ServerIdleTimeout    = 120 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 15 * time.Second
	APITimeout           = 30 * time.Second
)

// Logging
const (
	LogDir         = "./logs"
	LogFilePattern = "coordinator-%s-%s.log" // %s = YYYY-MM-DD, %s = level
	LogMaxAgeDays  = 30
)

// Database
const (
	DBPath        = "./data/coordinator.sqlite"
	DBTestPath    = "./data/coordinator_test.sqlite"
	DBWALMode     = true
	DBBusyTimeout = 5000 // milliseconds
)

// Fee estimation
const (
	FeeEstimateTimeout      = 10 * time.Second
	BTCDefaultFeeRateSatVB  = 10 // fallback used when the node is unreachable
	BTCMinFeeRateSatVB      = 1
	ShouldSpeedUpMultiplier = 1.2 // current estimate must exceed prior fee by this factor to warrant another bump
)

// Transaction sizing (BTC P2WPKH only). Weight units per BIP-141; vsize is
// ceil(weight/4).
const (
	BTCTxOverheadWU        = 42  // version + segwit marker/flag + locktime + varints
	BTCP2WPKHInputNonWitWU = 164 // outpoint(36) + scriptSig len(1) + sequence(4), weight x4
	BTCP2WPKHInputWitWU    = 107 // witness stack (sig + compressed pubkey), weight x1
	BTCP2WPKHOutputWU      = 124 // value(8) + scriptPubKey len(1) + scriptPubKey(22), weight x4
	BTCDustThresholdSats   = 294 // dust limit for a P2WPKH output at 1 sat/vB
	BTCMaxInputsPerTx      = 650 // keeps a worst-case tx under the default max weight
)

// Coordinator tuning defaults (mirrored by the envconfig defaults of Config's
// fields, which config.Load applies).
const (
	DefaultMaxUnconfirmedSpeedups = 10
	DefaultMaxRBFAttempts         = 10
	DefaultRBFFeePercentage       = 1.5
	DefaultMinBlocksBeforeRBF     = 1
	DefaultMaxFeerateSatVB        = 1000
	DefaultMinFundingAmountSats   = 10_000
	DefaultRetryAttemptsSendingTx = 3
	DefaultRetryIntervalSeconds   = 30
	DefaultFinalizationThreshold  = 6
	DefaultMaxTxWeight            = 400_000

	// DefaultMaxUnconfirmedParents bounds the aggregate count of unconfirmed
	// parent transactions attached to pending speedups (children_count + 1
	// budget per speedup, summed over the consecutive leading Dispatched run).
	DefaultMaxUnconfirmedParents = 24
)
