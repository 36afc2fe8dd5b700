package store

import (
	"database/sql"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// legalTxTransitions is the CoordinatedTransaction state matrix of spec §3.
var legalTxTransitions = map[models.TransactionState]map[models.TransactionState]bool{
	models.TxToDispatch: {models.TxDispatched: true},
	models.TxDispatched: {models.TxConfirmed: true},
	models.TxConfirmed:  {models.TxFinalized: true, models.TxDispatched: true},
	// A Finalized transaction can only be demoted by a reorg deep enough
	// to invalidate a finalized block; the coordinator does not walk back
	// further than Dispatched (the chain observer re-reports it as such).
	models.TxFinalized: {models.TxDispatched: true},
}

// SaveTx persists a new CoordinatedTransaction in state ToDispatch.
// Idempotent-on-collision: fails with ErrAlreadyPresent if txid is known.
func (s *Store) SaveTx(t *models.CoordinatedTransaction) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keyTx(t.Txid.String())
		exists, err := existsTx(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: tx %s", ErrAlreadyPresent, t.Txid)
		}
		t.State = models.TxToDispatch
		if err := putTx(tx, key, txToDTO(t)); err != nil {
			return err
		}
		return s.addToListTx(tx, keyTxInProgressList(), t.Txid.String())
	})
}

// GetTx fetches a single CoordinatedTransaction by txid.
func (s *Store) GetTx(txid chainhash.Hash) (*models.CoordinatedTransaction, error) {
	var dto coordinatedTxDTO
	if err := s.get(keyTx(txid.String()), &dto); err != nil {
		return nil, err
	}
	return txFromDTO(dto)
}

// UpdateTxState transitions a stored transaction's state, rejecting
// transitions outside the matrix with ErrIllegalTransition.
func (s *Store) UpdateTxState(txid chainhash.Hash, newState models.TransactionState) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keyTx(txid.String())
		var dto coordinatedTxDTO
		if err := getTx(tx, key, &dto); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownTxid, txid)
		}
		current := models.TransactionState(dto.State)
		if !legalTxTransitions[current][newState] {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, newState)
		}
		dto.State = string(newState)

		inProgress := newState == models.TxToDispatch || newState == models.TxDispatched || newState == models.TxConfirmed
		if err := putTx(tx, key, dto); err != nil {
			return err
		}
		if inProgress {
			return s.addToListTx(tx, keyTxInProgressList(), txid.String())
		}
		return s.removeFromListTx(tx, keyTxInProgressList(), txid.String())
	})
}

// MarkTxDispatched transitions a transaction to Dispatched and records
// the block height observed at broadcast time, atomically.
func (s *Store) MarkTxDispatched(txid chainhash.Hash, broadcastHeight int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keyTx(txid.String())
		var dto coordinatedTxDTO
		if err := getTx(tx, key, &dto); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownTxid, txid)
		}
		current := models.TransactionState(dto.State)
		if !legalTxTransitions[current][models.TxDispatched] {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, models.TxDispatched)
		}
		dto.State = string(models.TxDispatched)
		dto.BroadcastHeight = broadcastHeight
		if err := putTx(tx, key, dto); err != nil {
			return err
		}
		return s.addToListTx(tx, keyTxInProgressList(), txid.String())
	})
}

// GetTxsInProgress returns all CoordinatedTransactions in {ToDispatch, Dispatched, Confirmed}.
func (s *Store) GetTxsInProgress() ([]*models.CoordinatedTransaction, error) {
	var ids []string
	if err := s.get(keyTxInProgressList(), &ids); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	out := make([]*models.CoordinatedTransaction, 0, len(ids))
	for _, id := range ids {
		var dto coordinatedTxDTO
		if err := s.get(keyTx(id), &dto); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		t, err := txFromDTO(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// RemoveTx hard-deletes a CoordinatedTransaction and its in-progress
// list membership. Idempotent: removing an unknown txid is not an error.
func (s *Store) RemoveTx(txid chainhash.Hash) error {
	return s.withTx(func(tx *sql.Tx) error {
		if err := deleteTx(tx, keyTx(txid.String())); err != nil {
			return err
		}
		if err := deleteTx(tx, keyTxRetry(txid.String())); err != nil {
			return err
		}
		return s.removeFromListTx(tx, keyTxInProgressList(), txid.String())
	})
}

// addToListTx appends id to the string-list stored at key, if not already present.
func (s *Store) addToListTx(tx querier, key, id string) error {
	var list []string
	if err := getTx(tx, key, &list); err != nil && err != ErrNotFound {
		return err
	}
	for _, existing := range list {
		if existing == id {
			return nil
		}
	}
	list = append(list, id)
	return putTx(tx, key, list)
}

func (s *Store) removeFromListTx(tx querier, key, id string) error {
	var list []string
	if err := getTx(tx, key, &list); err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	out := list[:0]
	for _, existing := range list {
		if existing != id {
			out = append(out, existing)
		}
	}
	return putTx(tx, key, out)
}
