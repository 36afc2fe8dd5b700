package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
)

// Cancel handles DELETE /api/transactions/{txid}: removes the transaction
// from the store whatever its state; a broadcast already sent is not recalled.
func Cancel(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txid, err := parseTxid(chi.URLParam(r, "txid"))
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		if err := coord.Cancel(txid); err != nil {
			if errors.Is(err, coordinator.ErrNotFound) {
				writeError(w, http.StatusNotFound, config.ErrorNotFound, err.Error())
				return
			}
			slog.Error("cancel failed", "txid", txid, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("transaction canceled", "txid", txid)
		writeJSON(w, http.StatusOK, map[string]string{"txid": txid.String()})
	}
}
