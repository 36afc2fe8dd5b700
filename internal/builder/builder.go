// Package builder constructs and signs the CPFP/RBF speedup transactions
// the coordinator dispatches: one funding input (plus one input per
// accelerated anchor) paying a single change output back to the funding
// wallet.
package builder

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
	"github.com/bitcoin-coordinator/coordinator/internal/wallet"
)

// keyDeriver is the narrow capability this package needs from the HD
// wallet: sign with the funding key, label the change output.
type keyDeriver interface {
	DeriveBTCPrivateKey(index uint32) (*btcec.PrivateKey, error)
	DeriveBTCAddress(index uint32) (string, error)
}

var _ keyDeriver = (*wallet.KeyService)(nil)

// Builder implements coordinator.Builder against a single rotating HD
// funding key. Anchor outputs accelerated by CPFP are modeled as
// P2WPKH outputs paid to that same funding key, so every input in a
// speedup transaction signs with one private key.
type Builder struct {
	keys      keyDeriver
	netParams *chaincfg.Params
	maxWeight int64
}

// New creates a speedup transaction builder. maxWeight caps a built
// transaction's BIP-141 weight units (spec §4.D step 5's tx-too-large
// guard).
func New(keys keyDeriver, network string, maxWeight int64) *Builder {
	return &Builder{keys: keys, netParams: wallet.NetworkParams(network), maxWeight: maxWeight}
}

// estimateWeight returns the BIP-141 weight of a P2WPKH-only transaction
// with the given input/output counts.
func estimateWeight(numInputs, numOutputs int) int {
	return config.BTCTxOverheadWU +
		numInputs*(config.BTCP2WPKHInputNonWitWU+config.BTCP2WPKHInputWitWU) +
		numOutputs*config.BTCP2WPKHOutputWU
}

// Build constructs, signs and serializes one speedup transaction per
// coordinator.BuildRequest: one input from the funding UTXO, one input
// per accelerated anchor, one change output back to the next funding
// address.
func (b *Builder) Build(req coordinator.BuildRequest) (*coordinator.BuiltSpeedup, error) {
	numInputs := 1 + len(req.Children)
	weight := estimateWeight(numInputs, 1)
	if int64(weight) > b.maxWeight {
		return nil, fmt.Errorf("%w: estimated weight %d exceeds max %d", config.ErrTxTooLarge, weight, b.maxWeight)
	}
	vsize := int64((weight + 3) / 4)

	feeSats := req.FeeRateSatVB * vsize
	changeSats := req.Funding.Amount - feeSats
	if changeSats <= 0 {
		return nil, &coordinator.InsufficientFundsError{RequiredSats: feeSats, AvailableSats: req.Funding.Amount}
	}
	if changeSats < config.BTCDustThresholdSats {
		return nil, &coordinator.InsufficientFundsError{
			RequiredSats:  feeSats + config.BTCDustThresholdSats,
			AvailableSats: req.Funding.Amount,
		}
	}

	privKey, err := b.keys.DeriveBTCPrivateKey(req.Funding.KeyIndex)
	if err != nil {
		return nil, fmt.Errorf("derive funding private key at index %d: %w", req.Funding.KeyIndex, err)
	}
	defer privKey.Zero()

	fundingPkScript, err := pkScriptForPrivKey(privKey, b.netParams)
	if err != nil {
		return nil, fmt.Errorf("funding pkScript: %w", err)
	}

	nextIndex := req.Funding.KeyIndex + 1
	changeAddr, err := b.keys.DeriveBTCAddress(nextIndex)
	if err != nil {
		return nil, fmt.Errorf("derive change address at index %d: %w", nextIndex, err)
	}
	changeScript, err := addressToPkScript(changeAddr, b.netParams)
	if err != nil {
		return nil, fmt.Errorf("change pkScript: %w", err)
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(fundingTxIn(req.Funding.Txid, req.Funding.Vout))
	for _, child := range req.Children {
		msgTx.AddTxIn(fundingTxIn(child.Anchor.Txid, child.Anchor.Vout))
	}
	msgTx.AddTxOut(wire.NewTxOut(changeSats, changeScript))

	// Every anchor is a P2WPKH output paid to the same funding key, so a
	// single pkScript/value pair signs every input.
	prevOutFetcher := txscript.NewMultiPrevOutFetcher(nil)
	prevOutFetcher.AddPrevOut(msgTx.TxIn[0].PreviousOutPoint, &wire.TxOut{Value: req.Funding.Amount, PkScript: fundingPkScript})
	for i := 1; i < len(msgTx.TxIn); i++ {
		prevOutFetcher.AddPrevOut(msgTx.TxIn[i].PreviousOutPoint, &wire.TxOut{Value: 0, PkScript: fundingPkScript})
	}
	sigHashes := txscript.NewTxSigHashes(msgTx, prevOutFetcher)

	for i, txIn := range msgTx.TxIn {
		prevOut := prevOutFetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		witness, err := txscript.WitnessSignature(msgTx, sigHashes, i, prevOut.Value, prevOut.PkScript, txscript.SigHashAll, privKey, true)
		if err != nil {
			return nil, fmt.Errorf("sign speedup input %d: %w", i, err)
		}
		txIn.Witness = witness
	}

	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize speedup tx: %w", err)
	}

	slog.Info("speedup transaction built",
		"txid", msgTx.TxHash(),
		"inputs", len(msgTx.TxIn),
		"feeRateSatVB", req.FeeRateSatVB,
		"feeSats", feeSats,
		"isRBF", req.IsRBF,
	)

	return &coordinator.BuiltSpeedup{
		Txid:  msgTx.TxHash(),
		RawTx: buf.Bytes(),
		NextFunding: models.FundingUTXO{
			Txid:     msgTx.TxHash(),
			Vout:     0,
			Amount:   changeSats,
			KeyIndex: nextIndex,
		},
	}, nil
}

func fundingTxIn(txid chainhash.Hash, vout uint32) *wire.TxIn {
	op := wire.NewOutPoint(&txid, vout)
	txIn := wire.NewTxIn(op, nil, nil)
	txIn.Sequence = wire.MaxTxInSequenceNum - 2 // RBF-signaling, per BIP-125.
	return txIn
}

func pkScriptForPrivKey(privKey *btcec.PrivateKey, net *chaincfg.Params) ([]byte, error) {
	witnessProg := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(witnessProg, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

func addressToPkScript(address string, net *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, net)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", address, err)
	}
	return txscript.PayToAddrScript(addr)
}
