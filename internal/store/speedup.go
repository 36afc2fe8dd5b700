package store

import (
	"database/sql"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// legalSpeedupTransitions is the SpeedupTransaction state matrix of spec §3.
var legalSpeedupTransitions = map[models.SpeedupState]map[models.SpeedupState]bool{
	models.SpeedupDispatched: {models.SpeedupConfirmed: true},
	models.SpeedupConfirmed:  {models.SpeedupFinalized: true, models.SpeedupDispatched: true},
	models.SpeedupFinalized:  {models.SpeedupDispatched: true},
}

// SaveSpeedup appends s to the ordered speedup log and indexes it by txid.
// The log itself ("speedup/pending/list") is the single append-only source
// of truth both get_pending_speedups and get_all_pending_speedups read from;
// a speedup's current state (tracked on its by-id record) determines how far
// back each accessor walks — there is no separate physical pruning step.
func (s *Store) SaveSpeedup(sp *models.SpeedupTransaction) error {
	return s.withTx(func(tx *sql.Tx) error {
		var seq int64
		if err := getTx(tx, keySequenceCounter(), &seq); err != nil && err != ErrNotFound {
			return err
		}
		seq++
		sp.Sequence = seq
		if err := putTx(tx, keySequenceCounter(), seq); err != nil {
			return err
		}

		key := keySpeedup(sp.Txid.String())
		exists, err := existsTx(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: speedup %s", ErrAlreadyPresent, sp.Txid)
		}
		if err := putTx(tx, key, speedupToDTO(sp)); err != nil {
			return err
		}
		return s.addToListTx(tx, keySpeedupPendingList(), sp.Txid.String())
	})
}

// MarkSpeedupBroadcast records the height at which a previously-saved
// speedup's first successful broadcast was observed.
func (s *Store) MarkSpeedupBroadcast(txid chainhash.Hash, broadcastHeight int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keySpeedup(txid.String())
		var dto speedupDTO
		if err := getTx(tx, key, &dto); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownTxid, txid)
		}
		dto.BroadcastHeight = broadcastHeight
		return putTx(tx, key, dto)
	})
}

// GetSpeedup fetches a single SpeedupTransaction by txid.
func (s *Store) GetSpeedup(txid chainhash.Hash) (*models.SpeedupTransaction, error) {
	var dto speedupDTO
	if err := s.get(keySpeedup(txid.String()), &dto); err != nil {
		return nil, err
	}
	return speedupFromDTO(dto)
}

// UpdateSpeedupState transitions a stored speedup's state.
func (s *Store) UpdateSpeedupState(txid chainhash.Hash, newState models.SpeedupState) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keySpeedup(txid.String())
		var dto speedupDTO
		if err := getTx(tx, key, &dto); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownTxid, txid)
		}
		current := models.SpeedupState(dto.State)
		if !legalSpeedupTransitions[current][newState] {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, newState)
		}
		dto.State = string(newState)
		return putTx(tx, key, dto)
	})
}

// speedupLog returns the full append-only log, oldest first.
func (s *Store) speedupLog() ([]*models.SpeedupTransaction, error) {
	var ids []string
	if err := s.get(keySpeedupPendingList(), &ids); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*models.SpeedupTransaction, 0, len(ids))
	for _, id := range ids {
		sp, err := s.GetSpeedup(*mustHash(id))
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func mustHash(s string) *chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		// The log only ever stores hashes this package wrote itself.
		panic(fmt.Sprintf("store: corrupt txid in log: %v", err))
	}
	return h
}

// GetAllPendingSpeedups returns the entire log in reverse chronological
// order (newest first), including the most recent Finalized checkpoint.
func (s *Store) GetAllPendingSpeedups() ([]*models.SpeedupTransaction, error) {
	log, err := s.speedupLog()
	if err != nil {
		return nil, err
	}
	reversed := make([]*models.SpeedupTransaction, len(log))
	for i, sp := range log {
		reversed[len(log)-1-i] = sp
	}
	return reversed, nil
}

// GetPendingSpeedups returns, in chronological order, the log entries
// newer than (exclusive of) the most recent Finalized checkpoint.
func (s *Store) GetPendingSpeedups() ([]*models.SpeedupTransaction, error) {
	log, err := s.speedupLog()
	if err != nil {
		return nil, err
	}
	cut := 0
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].State == models.SpeedupFinalized {
			cut = i + 1
			break
		}
	}
	return log[cut:], nil
}

// HasReachedMaxUnconfirmedSpeedups reports whether the consecutive leading
// Dispatched run at the tail of GetPendingSpeedups meets or exceeds max.
func (s *Store) HasReachedMaxUnconfirmedSpeedups(max int) (bool, error) {
	pending, err := s.GetPendingSpeedups()
	if err != nil {
		return false, err
	}
	count := 0
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i].State != models.SpeedupDispatched {
			break
		}
		count++
	}
	return count >= max, nil
}

// GetAvailableUnconfirmedTxs computes the remaining parent-transaction
// budget: max − Σ(children_count + 1) over the consecutive leading
// Dispatched speedups in GetPendingSpeedups order. Returns 0 once a
// non-Confirmed RBF entry caps the chain (per spec §4.D batching rule).
func (s *Store) GetAvailableUnconfirmedTxs(maxUnconfirmedParents int) (int, error) {
	pending, err := s.GetPendingSpeedups()
	if err != nil {
		return 0, err
	}
	used := 0
	for i := len(pending) - 1; i >= 0; i-- {
		sp := pending[i]
		if sp.State != models.SpeedupDispatched {
			break
		}
		if sp.IsRBF {
			// An unconfirmed RBF caps the chain entirely: nothing further
			// can be added until it resolves.
			return 0, nil
		}
		used += len(sp.Children) + 1
	}
	remaining := maxUnconfirmedParents - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// GetLastSpeedupToRBF walks the pending log from newest to oldest,
// skipping consecutive Dispatched RBF entries (prior replacement
// attempts), and returns the first entry that breaks that run — the
// transaction that actually needs to be replaced next — along with how
// many RBF attempts have already been made against it. Returns nil if
// that entry is already Confirmed (nothing left to replace).
func (s *Store) GetLastSpeedupToRBF() (*models.SpeedupTransaction, int, error) {
	pending, err := s.GetPendingSpeedups()
	if err != nil {
		return nil, 0, err
	}
	replaceCount := 0
	for i := len(pending) - 1; i >= 0; i-- {
		sp := pending[i]
		if sp.IsRBF && sp.State == models.SpeedupDispatched {
			replaceCount++
			continue
		}
		if sp.State == models.SpeedupConfirmed {
			return nil, 0, nil
		}
		return sp, replaceCount, nil
	}
	return nil, 0, nil
}

// AddFunding registers a fresh funding UTXO as a synthetic, already-
// Finalized checkpoint entry in the speedup log (previous_funding ==
// next_funding == u), making it immediately visible to the funding
// resolver's reverse walk without waiting on a real broadcast.
func (s *Store) AddFunding(u models.FundingUTXO) error {
	sp := &models.SpeedupTransaction{
		Txid:            u.Txid,
		PreviousFunding: u,
		NextFunding:     u,
		IsRBF:           false,
		BroadcastHeight: 0,
		State:           models.SpeedupFinalized,
	}
	return s.SaveSpeedup(sp)
}

// SpeedupRetryKey exposes the retry key namespace for callers assembling
// AckNews keys that reference a speedup's retry record.
func SpeedupRetryKey(txid chainhash.Hash) string {
	return keySpeedupRetry(txid.String())
}

// MaxUnconfirmedParentsDefault is re-exported for callers that construct
// a Store without a full config.Config (e.g. tests).
const MaxUnconfirmedParentsDefault = config.DefaultMaxUnconfirmedParents
