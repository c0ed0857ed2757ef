package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marksync/marksync/internal/resolve"
)

// HistoryStore wraps the shared client with a retention cap so it satisfies
// the resolution engine's history contract.
type HistoryStore struct {
	store *Store
	cap   int64
}

// History returns a capped history store view.
func (s *Store) History(cap int) *HistoryStore {
	if cap <= 0 {
		cap = 1000
	}
	return &HistoryStore{store: s, cap: int64(cap)}
}

// AppendMany persists a whole batch of history entries atomically,
// trimming the oldest entries beyond the cap.
func (h *HistoryStore) AppendMany(ctx context.Context, entries []resolve.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := h.store.client.TxPipeline()
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal history entry %s: %w", e.ID, err)
		}
		pipe.LPush(ctx, KeyHistory, data)
	}
	pipe.LTrim(ctx, KeyHistory, 0, h.cap-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history batch: %w", err)
	}

	return nil
}

// List returns the most recent n history entries, newest first.
func (h *HistoryStore) List(ctx context.Context, n int) ([]resolve.HistoryEntry, error) {
	if n <= 0 || int64(n) > h.cap {
		n = int(h.cap)
	}

	raw, err := h.store.client.LRange(ctx, KeyHistory, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]resolve.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e resolve.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Skip entries that couldn't be decoded
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}
