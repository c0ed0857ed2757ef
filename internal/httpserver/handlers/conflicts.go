package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/resolve"
)

type resolveRequest struct {
	Strategy  string                 `json:"strategy"`
	Conflicts []resolveConflictInput `json:"conflicts"`
	Options   *resolve.Options       `json:"options,omitempty"`
}

type resolveConflictInput struct {
	ID     string               `json:"id"`
	Local  *domain.BookmarkNode `json:"local"`
	Remote *domain.BookmarkNode `json:"remote"`
}

type resolveResponse struct {
	Resolved   []resolve.Outcome  `json:"resolved"`
	Unresolved []resolve.Outcome  `json:"unresolved"`
	Stats      resolve.BatchStats `json:"stats"`
}

// ResolveConflicts classifies and resolves a caller-supplied conflict batch
// without touching the local tree. Callers apply winners themselves.
func ResolveConflicts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		strategy := d.DefaultStrategy
		if req.Strategy != "" {
			strategy = resolve.Strategy(req.Strategy)
		}
		if !strategy.Valid() {
			http.Error(w, "unknown strategy: "+string(strategy), http.StatusBadRequest)
			return
		}
		if len(req.Conflicts) == 0 {
			http.Error(w, "no conflicts supplied", http.StatusBadRequest)
			return
		}

		opts := d.ResolveOptions
		if req.Options != nil {
			opts = *req.Options
		}

		conflicts := make([]domain.ConflictRecord, 0, len(req.Conflicts))
		for _, in := range req.Conflicts {
			if in.Local == nil && in.Remote == nil {
				http.Error(w, "conflict "+in.ID+" has neither side", http.StatusBadRequest)
				return
			}
			conflicts = append(conflicts, domain.ConflictRecord{
				ID:     in.ID,
				Local:  in.Local,
				Remote: in.Remote,
			})
		}

		batch, err := d.Resolver.ResolveAll(r.Context(), conflicts, strategy, opts)
		if err != nil {
			d.Logger.Error("conflict resolution failed", logger.Error(err))
			http.Error(w, "resolution failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resolveResponse{
			Resolved:   batch.Resolved,
			Unresolved: batch.Unresolved,
			Stats:      batch.Stats,
		})
	}
}
