package coordinator

import (
	"errors"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
	"github.com/bitcoin-coordinator/coordinator/internal/store"
)

// processNews drains the chain observer's news queue, folding each item
// into a CoordinatedTransaction or SpeedupTransaction state transition
// (spec §4.E), mirroring it into the caller-visible monitor feed, and
// acknowledging it so the observer can advance its cursor.
func (c *Coordinator) processNews() error {
	items, err := c.observer.PendingNews()
	if err != nil {
		return err
	}
	for _, n := range items {
		if err := c.applyMonitorNews(n); err != nil {
			return err
		}
		if err := c.store.AddMonitorNews(n); err != nil {
			return err
		}
		if err := c.observer.Ack(n.AckKey); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) applyMonitorNews(n models.MonitorNews) error {
	if t, err := c.store.GetTx(n.Txid); err == nil {
		return c.applyTxNews(t, n)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if sp, err := c.store.GetSpeedup(n.Txid); err == nil {
		return c.applySpeedupNews(sp, n)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Neither a known transaction nor a known speedup; nothing to update.
	return nil
}

// applyTxNews advances a CoordinatedTransaction's lifecycle per §4.C's
// survey outcomes and §4.E's orphan-demotion rule.
func (c *Coordinator) applyTxNews(t *models.CoordinatedTransaction, n models.MonitorNews) error {
	switch {
	case n.Status == models.StatusFinalized:
		if t.State == models.TxDispatched {
			// The matrix has no Dispatched->Finalized edge: a tx always
			// passes through Confirmed, even if the observer's first
			// report for it already clears the finalization threshold.
			if err := c.store.UpdateTxState(t.Txid, models.TxConfirmed); err != nil {
				return err
			}
		}
		if t.State != models.TxFinalized {
			return c.store.UpdateTxState(t.Txid, models.TxFinalized)
		}
		return nil
	case n.Status.IsConfirmed():
		if t.State == models.TxDispatched {
			return c.store.UpdateTxState(t.Txid, models.TxConfirmed)
		}
		return nil
	case n.Status.IsOrphan():
		if t.State == models.TxConfirmed || t.State == models.TxFinalized {
			return c.store.UpdateTxState(t.Txid, models.TxDispatched)
		}
		return nil
	default:
		// Not found on chain: left for evaluateSpeedups to pick up.
		return nil
	}
}

// applySpeedupNews folds a speedup's confirmation into the funding chain
// (first confirmation promotes it to the live funding anchor) and
// demotes it symmetrically on an orphan, per §4.E.
func (c *Coordinator) applySpeedupNews(sp *models.SpeedupTransaction, n models.MonitorNews) error {
	switch {
	case n.Status == models.StatusFinalized:
		if sp.State == models.SpeedupDispatched {
			if err := c.store.UpdateSpeedupState(sp.Txid, models.SpeedupConfirmed); err != nil {
				return err
			}
		}
		if sp.State != models.SpeedupFinalized {
			return c.store.UpdateSpeedupState(sp.Txid, models.SpeedupFinalized)
		}
		return nil
	case n.Status.IsConfirmed():
		if sp.State == models.SpeedupDispatched {
			return c.store.UpdateSpeedupState(sp.Txid, models.SpeedupConfirmed)
		}
		return nil
	case n.Status.IsOrphan():
		if sp.State == models.SpeedupConfirmed || sp.State == models.SpeedupFinalized {
			return c.store.UpdateSpeedupState(sp.Txid, models.SpeedupDispatched)
		}
		return nil
	default:
		return nil
	}
}
