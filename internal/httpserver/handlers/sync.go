package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/resolve"
	"github.com/marksync/marksync/internal/syncer"
)

type syncRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

type syncResponse struct {
	Strategy   string   `json:"strategy"`
	Added      int      `json:"added"`
	Modified   int      `json:"modified"`
	Deleted    int      `json:"deleted"`
	Conflicts  int      `json:"conflicts"`
	Resolved   int      `json:"resolved"`
	Unresolved int      `json:"unresolved"`
	QueuedOps  int      `json:"queued_ops"`
	Unmerged   []string `json:"unmerged_conflict_ids,omitempty"`
}

// Sync runs a full sync pass and reports the outcome. Only one pass runs
// at a time; concurrent requests get 429.
func Sync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		strategy := d.DefaultStrategy

		// Body is optional: an empty POST uses the configured default strategy.
		if r.Body != nil && r.ContentLength != 0 {
			var req syncRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if req.Strategy != "" {
				strategy = resolve.Strategy(req.Strategy)
			}
		}

		if !strategy.Valid() {
			http.Error(w, "unknown strategy: "+string(strategy), http.StatusBadRequest)
			return
		}

		result, err := d.Syncer.RunSyncPass(r.Context(), strategy, d.ResolveOptions)
		if err != nil {
			if errors.Is(err, syncer.ErrSyncInProgress) {
				http.Error(w, "sync already in progress", http.StatusTooManyRequests)
				return
			}
			d.Logger.Error("sync pass failed", logger.Error(err))
			http.Error(w, "sync failed", http.StatusInternalServerError)
			return
		}

		resp := syncResponse{
			Strategy:   string(strategy),
			Added:      result.Added,
			Modified:   result.Modified,
			Deleted:    result.Deleted,
			Conflicts:  len(result.Conflicts),
			Resolved:   result.ResolvedCount,
			Unresolved: result.UnresolvedCount,
			QueuedOps:  result.QueuedOps,
		}
		for _, c := range result.Conflicts {
			resp.Unmerged = append(resp.Unmerged, c.ID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
