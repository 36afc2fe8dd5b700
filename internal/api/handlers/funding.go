package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type fundingRequest struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Amount   int64  `json:"amount"`
	KeyIndex uint32 `json:"keyIndex"`
}

// AddFunding handles POST /api/funding: replaces the active funding
// seed with a freshly supplied UTXO.
func AddFunding(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fundingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body: "+err.Error())
			return
		}

		txid, err := parseTxid(req.Txid)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		utxo := models.FundingUTXO{Txid: txid, Vout: req.Vout, Amount: req.Amount, KeyIndex: req.KeyIndex}
		if err := coord.AddFunding(utxo); err != nil {
			if errors.Is(err, coordinator.ErrInvalidFundingUTXO) {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
				return
			}
			slog.Error("add funding failed", "txid", txid, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("funding UTXO added", "txid", txid, "vout", req.Vout, "amount", req.Amount)
		writeJSON(w, http.StatusOK, map[string]string{"txid": txid.String()})
	}
}
