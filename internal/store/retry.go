package store

import (
	"database/sql"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// QueueSpeedupForRetry stamps a speedup's retry record with now as the
// last-attempt time and a not-before computed from intervalSeconds.
func (s *Store) QueueSpeedupForRetry(txid chainhash.Hash, now time.Time, intervalSeconds int) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keySpeedupRetry(txid.String())
		var dto retryInfoDTO
		if err := getTx(tx, key, &dto); err != nil && err != ErrNotFound {
			return err
		}
		dto.LastAttempt = now
		dto.NotBefore = now.Add(time.Duration(intervalSeconds) * time.Second)
		return putTx(tx, key, dto)
	})
}

// IncrementSpeedupRetryCount bumps the retry counter for txid.
func (s *Store) IncrementSpeedupRetryCount(txid chainhash.Hash) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keySpeedupRetry(txid.String())
		var dto retryInfoDTO
		if err := getTx(tx, key, &dto); err != nil && err != ErrNotFound {
			return err
		}
		dto.Count++
		return putTx(tx, key, dto)
	})
}

// DequeueSpeedupRetry removes a speedup's retry record. Idempotent.
func (s *Store) DequeueSpeedupRetry(txid chainhash.Hash) error {
	return s.withTx(func(tx *sql.Tx) error {
		return deleteTx(tx, keySpeedupRetry(txid.String()))
	})
}

// GetSpeedupRetry fetches a speedup's retry record, or a zero-value one
// if none exists yet.
func (s *Store) GetSpeedupRetry(txid chainhash.Hash) (models.RetryInfo, error) {
	var dto retryInfoDTO
	if err := s.get(keySpeedupRetry(txid.String()), &dto); err != nil {
		if err == ErrNotFound {
			return models.RetryInfo{}, nil
		}
		return models.RetryInfo{}, err
	}
	return models.RetryInfo{Count: dto.Count, LastAttempt: dto.LastAttempt, NotBefore: dto.NotBefore}, nil
}

// GetSpeedupsForRetry returns pending speedups whose retry record shows
// age >= interval AND retry count < maxRetries, i.e. due for another attempt.
func (s *Store) GetSpeedupsForRetry(now time.Time, maxRetries, intervalSeconds int) ([]*models.SpeedupTransaction, error) {
	pending, err := s.GetPendingSpeedups()
	if err != nil {
		return nil, err
	}
	var due []*models.SpeedupTransaction
	for _, sp := range pending {
		retry, err := s.GetSpeedupRetry(sp.Txid)
		if err != nil {
			return nil, err
		}
		if retry.Count == 0 && retry.LastAttempt.IsZero() {
			continue // never queued for retry
		}
		if retry.Count >= maxRetries {
			continue
		}
		if now.Before(retry.NotBefore) {
			continue
		}
		due = append(due, sp)
	}
	return due, nil
}

// Transaction retry bookkeeping mirrors the speedup retry queue, keyed
// under tx/<txid> instead of speedup/<txid>.

func (s *Store) QueueTxForRetry(txid chainhash.Hash, now time.Time, intervalSeconds int) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keyTxRetry(txid.String())
		var dto retryInfoDTO
		if err := getTx(tx, key, &dto); err != nil && err != ErrNotFound {
			return err
		}
		dto.LastAttempt = now
		dto.NotBefore = now.Add(time.Duration(intervalSeconds) * time.Second)
		return putTx(tx, key, dto)
	})
}

func (s *Store) IncrementTxRetryCount(txid chainhash.Hash) error {
	return s.withTx(func(tx *sql.Tx) error {
		key := keyTxRetry(txid.String())
		var dto retryInfoDTO
		if err := getTx(tx, key, &dto); err != nil && err != ErrNotFound {
			return err
		}
		dto.Count++
		return putTx(tx, key, dto)
	})
}

// DequeueTxRetry removes a transaction's retry record. Idempotent.
func (s *Store) DequeueTxRetry(txid chainhash.Hash) error {
	return s.withTx(func(tx *sql.Tx) error {
		return deleteTx(tx, keyTxRetry(txid.String()))
	})
}

func (s *Store) GetTxRetry(txid chainhash.Hash) (models.RetryInfo, error) {
	var dto retryInfoDTO
	if err := s.get(keyTxRetry(txid.String()), &dto); err != nil {
		if err == ErrNotFound {
			return models.RetryInfo{}, nil
		}
		return models.RetryInfo{}, err
	}
	return models.RetryInfo{Count: dto.Count, LastAttempt: dto.LastAttempt, NotBefore: dto.NotBefore}, nil
}

func (s *Store) GetTxsForRetry(now time.Time, maxRetries, intervalSeconds int) ([]*models.CoordinatedTransaction, error) {
	txs, err := s.GetTxsInProgress()
	if err != nil {
		return nil, err
	}
	var due []*models.CoordinatedTransaction
	for _, t := range txs {
		if t.State != models.TxToDispatch {
			continue
		}
		retry, err := s.GetTxRetry(t.Txid)
		if err != nil {
			return nil, err
		}
		if retry.Count == 0 && retry.LastAttempt.IsZero() {
			continue
		}
		if retry.Count >= maxRetries {
			continue
		}
		if now.Before(retry.NotBefore) {
			continue
		}
		due = append(due, t)
	}
	return due, nil
}
