package config

import (
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidMnemonic     = errors.New("invalid mnemonic")
	ErrMnemonicFileNotSet  = errors.New("mnemonic file path not configured")
	ErrKeyDerivation       = errors.New("key derivation failed")
	ErrRPCUnavailable      = errors.New("rpc node unavailable")
	ErrBroadcastFailed     = errors.New("transaction broadcast failed")
	ErrFeeEstimateFailed   = errors.New("fee estimation failed")
	ErrInsufficientUTXO    = errors.New("insufficient UTXO value to cover fee")
	ErrTxTooLarge          = errors.New("transaction exceeds maximum weight")
	ErrDustOutput          = errors.New("output below dust threshold")
)

// Error codes — shared with callers via API responses.
const (
	ErrorInvalidConfig     = "ERROR_INVALID_CONFIG"
	ErrorDatabase          = "ERROR_DATABASE"
	ErrorRPCUnavailable    = "ERROR_RPC_UNAVAILABLE"
	ErrorTxBuildFailed     = "ERROR_TX_BUILD_FAILED"
	ErrorTxSignFailed      = "ERROR_TX_SIGN_FAILED"
	ErrorTxBroadcastFailed = "ERROR_TX_BROADCAST_FAILED"
	ErrorFeeEstimateFailed = "ERROR_FEE_ESTIMATE_FAILED"
	ErrorInsufficientUTXO  = "ERROR_INSUFFICIENT_UTXO"
	ErrorTxTooLarge        = "ERROR_TX_TOO_LARGE"
	ErrorDuplicateTx       = "ERROR_DUPLICATE_TX"
	ErrorNotFound          = "ERROR_NOT_FOUND"
	ErrorInvalidRequest    = "ERROR_INVALID_REQUEST"
)

// transientError marks an error as retryable (§7 taxonomy class 2: transient
// RPC/mempool errors). internal/rpcnode wraps node call failures this way;
// the coordinator's retry queue does not consult IsTransient and retries
// every failed broadcast alike.
type transientError struct {
	err        error
	retryAfter time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// NewTransientError wraps err as a retryable error with no suggested delay.
func NewTransientError(err error) error {
	return &transientError{err: err}
}

// NewTransientErrorWithRetry wraps err as retryable, suggesting retryAfter
// as the backoff before the next attempt (e.g. parsed from a Retry-After header).
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &transientError{err: err, retryAfter: retryAfter}
}

// IsTransient reports whether err (or anything it wraps) is a transientError.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the suggested retry delay carried by err, or 0 if
// err is not transient or carries no suggestion.
func GetRetryAfter(err error) time.Duration {
	var te *transientError
	if !errors.As(err, &te) {
		return 0
	}
	return te.retryAfter
}
