package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type fundForSpeedupRequest struct {
	Txids   []string       `json:"txids"`
	Funding fundingRequest `json:"funding"`
	Context string         `json:"context"`
}

// FundForSpeedup handles POST /api/speedups/fund: couples a dedicated
// funding UTXO to a specific set of already-dispatched children.
func FundForSpeedup(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fundForSpeedupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body: "+err.Error())
			return
		}

		if len(req.Txids) == 0 {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "txids must not be empty")
			return
		}

		txids := make([]chainhash.Hash, len(req.Txids))
		for i, s := range req.Txids {
			txid, err := parseTxid(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
				return
			}
			txids[i] = txid
		}

		fundingTxid, err := parseTxid(req.Funding.Txid)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}
		funding := models.FundingUTXO{
			Txid:     fundingTxid,
			Vout:     req.Funding.Vout,
			Amount:   req.Funding.Amount,
			KeyIndex: req.Funding.KeyIndex,
		}

		if err := coord.FundForSpeedup(txids, funding, req.Context); err != nil {
			if errors.Is(err, coordinator.ErrEmptyTxids) || errors.Is(err, coordinator.ErrNotFound) || errors.Is(err, coordinator.ErrInvalidFundingUTXO) {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
				return
			}
			slog.Error("fund for speedup failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("speedup funded", "childCount", len(txids), "fundingTxid", fundingTxid)
		writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
	}
}
