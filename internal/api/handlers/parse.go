package handlers

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// outpointJSON is the wire shape of a models.Outpoint.
type outpointJSON struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func parseTxid(s string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("invalid txid %q: %w", s, err)
	}
	return *h, nil
}

func parseRawTx(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex-encoded rawTx: %w", err)
	}
	return b, nil
}

func (o outpointJSON) toModel() (models.Outpoint, error) {
	txid, err := parseTxid(o.Txid)
	if err != nil {
		return models.Outpoint{}, err
	}
	return models.Outpoint{Txid: txid, Vout: o.Vout}, nil
}
