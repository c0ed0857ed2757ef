package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/logger"
)

// Drain replays queued offline operations immediately instead of waiting
// for the next scheduled drain.
func Drain(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := d.Syncer.DrainOffline(r.Context())
		if err != nil {
			d.Logger.Error("queue drain failed", logger.Error(err))
			http.Error(w, "drain failed", http.StatusInternalServerError)
			return
		}

		d.Logger.Info("manual queue drain via endpoint",
			logger.String("remote_ip", r.RemoteAddr),
			logger.Int("processed", result.Processed),
			logger.Int("failed", result.Failed),
			logger.Int("remaining", result.Remaining))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	}
}
