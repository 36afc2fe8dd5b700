package rpcnode

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
)

// satsPerBTC converts BTC amounts returned by the node into satoshis.
const satsPerBTC = 1e8

// feeEstimateConfTarget asks estimatesmartfee for a fee that confirms
// within this many blocks. The speedup engine itself decides whether the
// resulting rate justifies a CPFP/RBF; this just passes the node's number
// through.
const feeEstimateConfTarget = 2

// Send broadcasts a raw, fully-signed transaction to the network.
func (c *Client) Send(rawTx []byte) error {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return fmt.Errorf("%w: deserialize raw tx: %s", config.ErrBroadcastFailed, err)
	}

	return c.call("sendrawtransaction", func() error {
		_, err := c.rpc.SendRawTransaction(&tx, false)
		return err
	})
}

// EstimateFeeRateSatVB asks the node for its current fee-rate estimate and
// converts it from BTC/kvB to sat/vB.
func (c *Client) EstimateFeeRateSatVB() (int64, error) {
	var result *btcjson.EstimateSmartFeeResult
	err := c.call("estimatesmartfee", func() error {
		mode := btcjson.EstimateModeConservative
		res, rpcErr := c.rpc.EstimateSmartFee(feeEstimateConfTarget, &mode)
		if rpcErr != nil {
			return rpcErr
		}
		if res.FeeRate == nil {
			return config.ErrFeeEstimateFailed
		}
		result = res
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s", config.ErrFeeEstimateFailed, err)
	}

	satPerVB := int64(*result.FeeRate * satsPerBTC / 1000)
	if satPerVB < 1 {
		satPerVB = 1
	}
	return satPerVB, nil
}
