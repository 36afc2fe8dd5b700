package rpcnode

import (
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// errNoSuchTx mirrors the RPC error bitcoind returns for an unknown txid.
var errNoSuchTx = btcjson.NewRPCError(btcjson.ErrRPCNoTxInfo, "No such mempool or blockchain transaction")

// fakeNode is a scriptable stand-in for *rpcclient.Client.
type fakeNode struct {
	height    int64
	heightErr error

	txResults map[chainhash.Hash]*btcjson.TxRawResult
	txErr     error

	sendErr    error
	sentRawTxs []*wire.MsgTx

	feeRate    *float64
	feeErr     error
	shutdown   bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{txResults: make(map[chainhash.Hash]*btcjson.TxRawResult)}
}

func (f *fakeNode) GetBlockCount() (int64, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeNode) GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	res, ok := f.txResults[*txHash]
	if !ok {
		return nil, errNoSuchTx
	}
	return res, nil
}

func (f *fakeNode) SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentRawTxs = append(f.sentRawTxs, tx)
	h := tx.TxHash()
	return &h, nil
}

func (f *fakeNode) EstimateSmartFee(confTarget int64, mode *btcjson.EstimateSmartFeeMode) (*btcjson.EstimateSmartFeeResult, error) {
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return &btcjson.EstimateSmartFeeResult{FeeRate: f.feeRate}, nil
}

func (f *fakeNode) Shutdown() {
	f.shutdown = true
}
