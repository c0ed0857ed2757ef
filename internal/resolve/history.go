package resolve

import (
	"context"
	"time"

	"github.com/marksync/marksync/internal/domain"
)

// HistoryEntry is one append-only audit record of a conflict's outcome.
// Retention is bounded by the backing store (oldest evicted first).
type HistoryEntry struct {
	ID         string              `json:"id"`
	ConflictID string              `json:"conflictId"`
	Strategy   Strategy            `json:"strategy"`
	Type       domain.ConflictType `json:"type"`
	Severity   domain.Severity     `json:"severity"`
	Resolved   bool                `json:"resolved"`
	Reason     string              `json:"reason"`
	Timestamp  time.Time           `json:"timestamp"`
}

// HistoryStore persists resolution history with append-with-cap semantics.
// AppendMany writes a whole batch atomically.
type HistoryStore interface {
	AppendMany(ctx context.Context, entries []HistoryEntry) error
}

// NopHistory discards history. Used when no persistence is configured.
type NopHistory struct{}

func (NopHistory) AppendMany(context.Context, []HistoryEntry) error { return nil }
