package coordinator

import "errors"

// Sentinel errors for the coordinator-facing API (spec.md §6/§7 class 1:
// validation errors, surfaced synchronously, never entering state).
var (
	ErrDuplicateTransaction = errors.New("coordinator: duplicate transaction")
	ErrNotFound             = errors.New("coordinator: not found")
	ErrInvalidFundingUTXO   = errors.New("coordinator: invalid funding utxo")
	ErrEmptyTxids           = errors.New("coordinator: empty txid list")
)
