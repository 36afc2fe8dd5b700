// Package funding implements the funding resolver: determining, from the
// speedup log alone, which UTXO the next speedup transaction may spend.
package funding

import (
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// speedupLog is the subset of the store the resolver needs. Accepting an
// interface rather than *store.Store keeps the resolver testable without
// a sqlite fixture.
type speedupLog interface {
	GetAllPendingSpeedups() ([]*models.SpeedupTransaction, error)
	HasReachedMaxUnconfirmedSpeedups(max int) (bool, error)
}

// Resolver derives the current funding UTXO from a speedup log.
type Resolver struct {
	log                   speedupLog
	maxUnconfirmedSpeedup int
}

// New builds a Resolver reading from log, capped by maxUnconfirmedSpeedup.
func New(log speedupLog, maxUnconfirmedSpeedup int) *Resolver {
	return &Resolver{log: log, maxUnconfirmedSpeedup: maxUnconfirmedSpeedup}
}

// GetFunding walks the speedup log newest-to-oldest and returns the UTXO
// the next speedup may spend, or nil if none is currently available.
//
// Phase A (seekingConfirmedRBF == false): a Finalized or Confirmed entry,
// or any non-RBF entry regardless of state, settles the answer — chaining
// off an unconfirmed regular speedup's change output is safe, since it
// only adds to the mempool package. Hitting an unconfirmed RBF entry
// switches to phase B instead of answering, since RBF replaces rather
// than chains and an unconfirmed replacement could itself be replaced.
//
// Phase B (seekingConfirmedRBF == true): only a confirmed entry — RBF or
// not — settles the answer; an unconfirmed RBF run simply continues the
// walk, and a non-RBF unconfirmed entry means the run itself still needs
// replacing, so the resolver gives up and returns nil.
func (r *Resolver) GetFunding() (*models.FundingUTXO, error) {
	reached, err := r.log.HasReachedMaxUnconfirmedSpeedups(r.maxUnconfirmedSpeedup)
	if err != nil {
		return nil, err
	}
	if reached {
		return nil, nil
	}

	speedups, err := r.log.GetAllPendingSpeedups()
	if err != nil {
		return nil, err
	}

	seekingConfirmedRBF := false
	for _, sp := range speedups {
		confirmed := sp.State == models.SpeedupConfirmed || sp.State == models.SpeedupFinalized
		if !seekingConfirmedRBF {
			if confirmed {
				return &sp.NextFunding, nil
			}
			if !sp.IsRBF {
				return &sp.NextFunding, nil
			}
			seekingConfirmedRBF = true
			continue
		}

		if sp.IsRBF {
			if sp.State == models.SpeedupConfirmed {
				return &sp.NextFunding, nil
			}
			continue
		}
		if sp.State == models.SpeedupConfirmed {
			return &sp.NextFunding, nil
		}
		return nil, nil
	}

	return nil, nil
}
