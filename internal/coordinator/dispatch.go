package coordinator

import (
	"time"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// dispatchDueTransactions broadcasts every ToDispatch transaction whose
// target height has been reached (spec §4.C "eligibility predicate") and
// that has not been attempted yet; later attempts belong to
// retryDueTransactions.
func (c *Coordinator) dispatchDueTransactions() error {
	inProgress, err := c.store.GetTxsInProgress()
	if err != nil {
		return err
	}

	height := c.observer.Height()
	for _, t := range inProgress {
		if t.State != models.TxToDispatch {
			continue
		}
		if t.TargetHeight != nil && height < *t.TargetHeight {
			continue
		}
		retry, err := c.store.GetTxRetry(t.Txid)
		if err != nil {
			return err
		}
		if !retry.LastAttempt.IsZero() {
			continue
		}
		c.attemptTxBroadcast(t, false)
	}
	return nil
}

// retryDueTransactions re-attempts broadcast for transactions whose
// backoff has elapsed, per spec §4.C broadcast failure handling.
func (c *Coordinator) retryDueTransactions() error {
	due, err := c.store.GetTxsForRetry(c.now(), c.cfg.RetryAttemptsSendingTx, c.cfg.RetryIntervalSeconds)
	if err != nil {
		return err
	}
	for _, t := range due {
		c.attemptTxBroadcast(t, true)
	}
	return nil
}

// attemptTxBroadcast performs one broadcast attempt for t. On success the
// transaction moves to Dispatched and any queued retry record is cleared.
// On failure it is (re)queued for retry and a DispatchTransactionError
// news entry is emitted — one per attempt, per spec §8 scenario 6, not
// deduped the way speedup dispatch errors are. isRetryAttempt distinguishes
// the unconditional first attempt (dispatchDueTransactions) from the
// retry-budget-gated attempts that follow, since only the latter count
// against retry_attempts_sending_tx.
func (c *Coordinator) attemptTxBroadcast(t *models.CoordinatedTransaction, isRetryAttempt bool) {
	if err := c.rpc.Send(t.RawTx); err != nil {
		now := c.now()
		if isRetryAttempt {
			_ = c.store.IncrementTxRetryCount(t.Txid)
		}
		_ = c.store.QueueTxForRetry(t.Txid, now, c.cfg.RetryIntervalSeconds)
		_ = c.store.AddNews(models.NewsEntry{
			Kind:      models.NewsDispatchTransactionError,
			AckKey:    t.Txid.String() + ":" + now.Format(time.RFC3339Nano),
			Txid:      t.Txid,
			Context:   t.Context,
			Reason:    err.Error(),
			CreatedAt: now,
		})
		return
	}

	_ = c.store.MarkTxDispatched(t.Txid, c.observer.Height())
	_ = c.store.DequeueTxRetry(t.Txid)
}
