package coordinator

import (
	"errors"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// evaluateSpeedups implements spec §4.D steps 1-3: for every Dispatched
// transaction not yet seen on chain, decide whether it needs a CPFP
// speedup, and if so batch as many eligible children as the parent
// budget allows into one new speedup.
func (c *Coordinator) evaluateSpeedups() error {
	inProgress, err := c.store.GetTxsInProgress()
	if err != nil {
		return err
	}

	var unaccelerated []*models.CoordinatedTransaction
	for _, t := range inProgress {
		if t.State != models.TxDispatched {
			continue
		}
		speedUp, needsSpeedUp, err := c.findChildSpeedup(t.Txid)
		if err != nil {
			return err
		}
		if speedUp != nil && !needsSpeedUp {
			continue
		}
		unaccelerated = append(unaccelerated, t)
	}
	if len(unaccelerated) == 0 {
		return nil
	}

	budget, err := c.store.GetAvailableUnconfirmedTxs(c.cfg.MaxUnconfirmedParents)
	if err != nil {
		return err
	}
	if budget <= 0 {
		return nil
	}

	funding, err := c.funding.GetFunding()
	if err != nil {
		return err
	}
	if funding == nil {
		return c.emitFundingNotFound()
	}

	// A speedup accelerating N children costs N+1 parent slots (one for
	// the speedup itself, one per child), so the batch can grow up to
	// budget-1 children before the speedup's own slot would overflow it.
	maxChildren := budget - 1
	if maxChildren <= 0 {
		return nil
	}
	var children []models.ChildSpeedup
	for _, t := range unaccelerated {
		if t.AnchorUTXO == nil {
			continue
		}
		if len(children) >= maxChildren {
			break
		}
		children = append(children, models.ChildSpeedup{Anchor: *t.AnchorUTXO, ChildTx: t.Txid, Context: t.Context})
	}
	if len(children) == 0 {
		return nil
	}

	feeRate, err := c.fees.EstimateFeeRateSatVB()
	if err != nil {
		return err
	}
	return c.dispatchSpeedup(children, *funding, feeRate, false, nil)
}

// findChildSpeedup returns the most recent speedup accelerating txid and
// whether it still needs (another round of) acceleration, per §4.D step 1.
func (c *Coordinator) findChildSpeedup(txid chainhash.Hash) (*models.SpeedupTransaction, bool, error) {
	pending, err := c.store.GetAllPendingSpeedups()
	if err != nil {
		return nil, false, err
	}
	for _, sp := range pending {
		for _, child := range sp.Children {
			if child.ChildTx != txid {
				continue
			}
			switch sp.State {
			case models.SpeedupConfirmed, models.SpeedupFinalized:
				return sp, false, nil
			default:
				shouldSpeedUp, err := c.fees.ShouldSpeedUp(sp.FeeRateSatVB)
				if err != nil {
					return sp, false, err
				}
				return sp, shouldSpeedUp, nil
			}
		}
	}
	return nil, true, nil
}

// evaluateRBF implements spec §4.D step 4's RBF branch: if the tail of
// the pending log is a run of Dispatched RBF entries whose head still
// needs replacement, and enough blocks have passed since it was last
// broadcast, bump its fee and replace it.
func (c *Coordinator) evaluateRBF() error {
	head, replaceCount, err := c.store.GetLastSpeedupToRBF()
	if err != nil {
		return err
	}
	if head == nil {
		return nil
	}
	if replaceCount >= c.cfg.MaxRBFAttempts {
		return nil
	}
	if head.BroadcastHeight > 0 {
		height := c.observer.Height()
		if height-head.BroadcastHeight < int64(c.cfg.MinBlocksBeforeRBF) {
			return nil
		}
	}

	bumpedFeeRate := int64(float64(head.FeeRateSatVB) * c.cfg.RBFFeePercentage)
	replaced := models.Outpoint{Txid: head.PreviousFunding.Txid, Vout: head.PreviousFunding.Vout}
	return c.dispatchSpeedup(head.Children, head.PreviousFunding, bumpedFeeRate, true, &replaced)
}

// dispatchSpeedup builds, signs and broadcasts one speedup transaction,
// shared by the CPFP path (evaluateSpeedups, FundForSpeedup) and the RBF
// path (evaluateRBF). It owns spec §4.D steps 5-7: the fee-rate cap,
// insufficient-funds handling, and deduped dispatch-error news.
func (c *Coordinator) dispatchSpeedup(children []models.ChildSpeedup, funding models.FundingUTXO, feeRateSatVB int64, isRBF bool, replaced *models.Outpoint) error {
	if feeRateSatVB > c.cfg.MaxFeerateSatVB {
		return c.emitEstimateFeerateTooHigh(feeRateSatVB)
	}

	req := BuildRequest{
		Funding:          funding,
		Children:         children,
		FeeRateSatVB:     feeRateSatVB,
		IsRBF:            isRBF,
		ReplacedOutpoint: replaced,
	}
	built, err := c.builder.Build(req)
	if err != nil {
		var insufficient *InsufficientFundsError
		if errors.As(err, &insufficient) {
			return c.emitInsufficientFunds(funding.Txid, insufficient.RequiredSats, insufficient.AvailableSats)
		}
		return c.handleSpeedupDispatchError(children, funding.Txid, err)
	}

	sp := &models.SpeedupTransaction{
		Txid:            built.Txid,
		RawTx:           built.RawTx,
		Children:        children,
		PreviousFunding: funding,
		NextFunding:     built.NextFunding,
		IsRBF:           isRBF,
		FeeRateSatVB:    feeRateSatVB,
		State:           models.SpeedupDispatched,
	}
	if err := c.store.SaveSpeedup(sp); err != nil {
		return err
	}
	return c.attemptSpeedupBroadcast(sp, false)
}

// retryDueSpeedups re-attempts broadcast for speedups whose backoff has
// elapsed and whose first broadcast never succeeded, per spec §4.D step 7.
func (c *Coordinator) retryDueSpeedups() error {
	due, err := c.store.GetSpeedupsForRetry(c.now(), c.cfg.RetryAttemptsSendingTx, c.cfg.RetryIntervalSeconds)
	if err != nil {
		return err
	}
	for _, sp := range due {
		if sp.BroadcastHeight > 0 {
			continue
		}
		if err := c.attemptSpeedupBroadcast(sp, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) attemptSpeedupBroadcast(sp *models.SpeedupTransaction, isRetryAttempt bool) error {
	if err := c.rpc.Send(sp.RawTx); err != nil {
		if isRetryAttempt {
			if err := c.store.IncrementSpeedupRetryCount(sp.Txid); err != nil {
				return err
			}
		}
		if err := c.store.QueueSpeedupForRetry(sp.Txid, c.now(), c.cfg.RetryIntervalSeconds); err != nil {
			return err
		}
		return c.handleSpeedupDispatchError(sp.Children, sp.PreviousFunding.Txid, err)
	}

	if err := c.store.MarkSpeedupBroadcast(sp.Txid, c.observer.Height()); err != nil {
		return err
	}
	if err := c.store.DequeueSpeedupRetry(sp.Txid); err != nil {
		return err
	}
	if err := c.observer.Monitor(sp.Txid, childTxidsContext(sp.Children)); err != nil {
		return err
	}
	return c.emitNewSpeedUp(sp.Children, len(sp.Children))
}

// childTxidsContext joins the txids a speedup accelerates into the
// context string it's monitored under, so the chain observer can report
// a speedup's confirmation keyed by the children it was built for.
func childTxidsContext(children []models.ChildSpeedup) string {
	ids := make([]string, len(children))
	for i, ch := range children {
		ids[i] = ch.ChildTx.String()
	}
	return strings.Join(ids, ",")
}

// handleSpeedupDispatchError emits at most one DispatchSpeedUpError news
// entry per set of child txids (deduped by that set, per spec §4.D step 7).
// It queues no retry itself: attemptSpeedupBroadcast queues the retry
// before calling it, and a builder failure queues none.
func (c *Coordinator) handleSpeedupDispatchError(children []models.ChildSpeedup, fundingTxid chainhash.Hash, buildErr error) error {
	now := c.now()
	ackKey := speedupErrorAckKey(children)

	has, err := c.store.HasNews(ackKey)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	childTxids := make([]chainhash.Hash, len(children))
	contexts := make([]string, len(children))
	for i, ch := range children {
		childTxids[i] = ch.ChildTx
		contexts[i] = ch.Context
	}
	return c.store.AddNews(models.NewsEntry{
		Kind:        models.NewsDispatchSpeedUpError,
		AckKey:      ackKey,
		ChildTxids:  childTxids,
		Contexts:    contexts,
		FundingTxid: fundingTxid,
		Reason:      buildErr.Error(),
		CreatedAt:   now,
	})
}

func speedupErrorAckKey(children []models.ChildSpeedup) string {
	var b strings.Builder
	b.WriteString("speedup-error:")
	for i, ch := range children {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(ch.ChildTx.String())
	}
	return b.String()
}

func (c *Coordinator) emitInsufficientFunds(fundingTxid chainhash.Hash, required, available int64) error {
	return c.store.AddNews(models.NewsEntry{
		Kind:          models.NewsInsufficientFunds,
		AckKey:        "insufficient-funds:" + fundingTxid.String(),
		FundingTxid:   fundingTxid,
		RequiredSats:  required,
		AvailableSats: available,
		CreatedAt:     c.now(),
	})
}

func (c *Coordinator) emitEstimateFeerateTooHigh(estimated int64) error {
	return c.store.AddNews(models.NewsEntry{
		Kind:           models.NewsEstimateFeerateTooHigh,
		AckKey:         "feerate-too-high",
		EstimatedSatVB: estimated,
		CapSatVB:       c.cfg.MaxFeerateSatVB,
		CreatedAt:      c.now(),
	})
}

func (c *Coordinator) emitFundingNotFound() error {
	return c.store.AddNews(models.NewsEntry{
		Kind:      models.NewsFundingNotFound,
		AckKey:    "funding-not-found",
		CreatedAt: c.now(),
	})
}

func (c *Coordinator) emitNewSpeedUp(children []models.ChildSpeedup, speedupCount int) error {
	now := c.now()
	for _, ch := range children {
		if err := c.store.AddNews(models.NewsEntry{
			Kind:         models.NewsNewSpeedUp,
			AckKey:       "new-speedup:" + ch.ChildTx.String() + ":" + now.Format(time.RFC3339Nano),
			ChildTxid:    ch.ChildTx,
			Context:      ch.Context,
			SpeedupCount: speedupCount,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
	}
	return nil
}
