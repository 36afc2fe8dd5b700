package store

import "errors"

// Sentinel errors for store-level validation (spec §7 class 1 and class 6).
var (
	ErrAlreadyPresent    = errors.New("store: already present")
	ErrIllegalTransition = errors.New("store: illegal state transition")
	ErrUnknownTxid       = errors.New("store: unknown txid")
)
