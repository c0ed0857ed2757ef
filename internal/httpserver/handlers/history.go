package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/resolve"
)

const defaultHistoryLimit = 100

type historyResponse struct {
	Entries []resolve.HistoryEntry `json:"entries"`
	Count   int                    `json:"count"`
}

// History returns recent resolution decisions, newest first.
func History(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.History == nil {
			http.Error(w, "history not available", http.StatusServiceUnavailable)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := d.History.List(r.Context(), limit)
		if err != nil {
			d.Logger.Error("failed to list resolution history", logger.Error(err))
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []resolve.HistoryEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(historyResponse{
			Entries: entries,
			Count:   len(entries),
		})
	}
}
