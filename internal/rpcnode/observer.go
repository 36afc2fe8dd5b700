package rpcnode

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// isNoSuchTransaction reports whether err is bitcoind's "no such mempool
// or blockchain transaction" response, as opposed to a connectivity or
// other transient failure the next Tick should simply retry.
func isNoSuchTransaction(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}

// watchedItem is one txid the coordinator has asked the observer to track.
type watchedItem struct {
	context    string
	lastStatus models.MonitorStatus
}

// Observer implements coordinator.ChainObserver by polling a bitcoind
// node each Tick for the confirmation status of every monitored txid. It
// never pushes; the coordinator pulls by calling Tick.
type Observer struct {
	client *Client

	finalizationThreshold int64

	mu       sync.Mutex
	ready    bool
	height   int64
	watching map[chainhash.Hash]*watchedItem
	pending  []models.MonitorNews
	ackSeq   int64
}

// NewObserver creates a chain observer backed by client, treating a txid as
// finalized once it has finalizationThreshold confirmations.
func NewObserver(client *Client, finalizationThreshold int64) *Observer {
	return &Observer{
		client:                client,
		finalizationThreshold: finalizationThreshold,
		watching:              make(map[chainhash.Hash]*watchedItem),
	}
}

// Tick refreshes the observer's view of the chain: best height, then the
// status of every watched txid, queuing a MonitorNews entry for each one
// whose status changed since the last Tick.
func (o *Observer) Tick() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	height, err := o.bestHeight()
	if err != nil {
		o.ready = false
		return err
	}
	o.height = height
	o.ready = true

	for txid, item := range o.watching {
		status, confs, err := o.statusOf(txid, item)
		if err != nil {
			slog.Warn("rpcnode observer status lookup failed", "txid", txid, "error", err)
			continue
		}
		if status == item.lastStatus {
			continue
		}
		item.lastStatus = status

		o.ackSeq++
		o.pending = append(o.pending, models.MonitorNews{
			Txid:          txid,
			Status:        status,
			Confirmations: confs,
			Context:       item.context,
			AckKey:        fmt.Sprintf("%s-%d", txid, o.ackSeq),
		})
	}
	return nil
}

func (o *Observer) bestHeight() (int64, error) {
	var height int64
	err := o.client.call("getblockcount", func() error {
		h, rpcErr := o.client.rpc.GetBlockCount()
		if rpcErr != nil {
			return rpcErr
		}
		height = h
		return nil
	})
	return height, err
}

// statusOf queries the node for txid's current confirmation depth and
// maps it onto the closed MonitorStatus set, treating "no longer found
// after having been confirmed" as an orphan rather than a disappearance.
func (o *Observer) statusOf(txid chainhash.Hash, item *watchedItem) (models.MonitorStatus, int64, error) {
	var result *btcjson.TxRawResult
	err := o.client.call("getrawtransaction", func() error {
		res, rpcErr := o.client.rpc.GetRawTransactionVerbose(&txid)
		if rpcErr != nil {
			return rpcErr
		}
		result = res
		return nil
	})
	if err != nil {
		if !isNoSuchTransaction(err) {
			// A transient RPC failure, not a confirmed absence: leave the
			// item's status untouched and let the next Tick retry.
			return item.lastStatus, 0, err
		}
		if item.lastStatus.IsConfirmed() {
			return models.StatusOrphaned, 0, nil
		}
		return models.StatusNotFound, 0, nil
	}

	confs := int64(result.Confirmations)
	switch {
	case confs >= o.finalizationThreshold:
		return models.StatusFinalized, confs, nil
	case confs >= 1:
		return models.StatusConfirmed, confs, nil
	default:
		return item.lastStatus, confs, nil
	}
}

// IsReady reports whether the observer has a usable view of the chain.
func (o *Observer) IsReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// Height returns the last height observed on Tick.
func (o *Observer) Height() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.height
}

// Monitor registers txid for confirmation tracking under context.
func (o *Observer) Monitor(txid chainhash.Hash, context string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.watching[txid]; exists {
		return nil
	}
	o.watching[txid] = &watchedItem{context: context}
	return nil
}

// PendingNews returns every status change queued since the last Ack.
func (o *Observer) PendingNews() ([]models.MonitorNews, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.MonitorNews, len(o.pending))
	copy(out, o.pending)
	return out, nil
}

// Ack removes a delivered news entry from the pending queue.
func (o *Observer) Ack(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, n := range o.pending {
		if n.AckKey == key {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return nil
		}
	}
	return nil
}
