package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type transactionResponse struct {
	Txid            string         `json:"txid"`
	AnchorUTXO      *outpointJSON  `json:"anchorUtxo,omitempty"`
	TargetHeight    *int64         `json:"targetHeight,omitempty"`
	BroadcastHeight int64          `json:"broadcastHeight"`
	State           string         `json:"state"`
	Context         string         `json:"context"`
}

func toTransactionResponse(t *models.CoordinatedTransaction) transactionResponse {
	resp := transactionResponse{
		Txid:            t.Txid.String(),
		TargetHeight:    t.TargetHeight,
		BroadcastHeight: t.BroadcastHeight,
		State:           string(t.State),
		Context:         t.Context,
	}
	if t.AnchorUTXO != nil {
		resp.AnchorUTXO = &outpointJSON{Txid: t.AnchorUTXO.Txid.String(), Vout: t.AnchorUTXO.Vout}
	}
	return resp
}

// GetTransaction handles GET /api/transactions/{txid}: returns a
// stored transaction's current status.
func GetTransaction(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txid, err := parseTxid(chi.URLParam(r, "txid"))
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		t, err := coord.GetTransaction(txid)
		if err != nil {
			if errors.Is(err, coordinator.ErrNotFound) {
				writeError(w, http.StatusNotFound, config.ErrorNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toTransactionResponse(t))
	}
}
