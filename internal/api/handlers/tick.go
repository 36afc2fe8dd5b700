package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
)

// Tick handles POST /api/tick: drives one coordinator tick on the
// caller's clock, per the sidecar-scheduler contract.
func Tick(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if err := coord.Tick(); err != nil {
			slog.Error("tick failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		slog.Info("tick completed", "elapsed_ms", time.Since(start).Milliseconds())
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
