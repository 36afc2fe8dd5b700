package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
)

type monitorRequest struct {
	Txid    string `json:"txid"`
	Context string `json:"context"`
}

// Monitor handles POST /api/monitor: registers a txid with the chain
// observer without creating a CoordinatedTransaction.
func Monitor(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req monitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body: "+err.Error())
			return
		}

		txid, err := parseTxid(req.Txid)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		if err := coord.Monitor(txid, req.Context); err != nil {
			slog.Error("monitor failed", "txid", txid, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("txid registered for monitoring", "txid", txid, "context", req.Context)
		writeJSON(w, http.StatusOK, map[string]string{"txid": txid.String()})
	}
}
