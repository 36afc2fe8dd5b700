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

type dispatchRequest struct {
	Txid         string        `json:"txid"`
	RawTx        string        `json:"rawTx"`
	Anchor       *outpointJSON `json:"anchor,omitempty"`
	Context      string        `json:"context"`
	TargetHeight *int64        `json:"targetHeight,omitempty"`
}

// Dispatch handles POST /api/dispatch: queues a fully-signed transaction
// for broadcast.
func Dispatch(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body: "+err.Error())
			return
		}

		txid, err := parseTxid(req.Txid)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}
		rawTx, err := parseRawTx(req.RawTx)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		var anchor *models.Outpoint
		if req.Anchor != nil {
			a, err := req.Anchor.toModel()
			if err != nil {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
				return
			}
			anchor = &a
		}

		if err := coord.Dispatch(txid, rawTx, anchor, req.Context, req.TargetHeight); err != nil {
			if errors.Is(err, coordinator.ErrDuplicateTransaction) {
				slog.Warn("dispatch rejected: duplicate", "txid", txid)
				writeError(w, http.StatusConflict, config.ErrorDuplicateTx, err.Error())
				return
			}
			slog.Error("dispatch failed", "txid", txid, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("transaction dispatched", "txid", txid, "context", req.Context)
		writeJSON(w, http.StatusAccepted, map[string]string{"txid": txid.String()})
	}
}
