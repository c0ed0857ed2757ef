// Package queue implements the bounded offline operation queue.
//
// Network operations that fail during degraded conditions are deferred here
// and replayed on reconnect. The queue is FIFO with a hard cap; on overflow
// the oldest entries are evicted first.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/optimizer"
)

// DefaultMaxAttempts caps replay attempts per entry before it is dropped.
const DefaultMaxAttempts = 5

// Entry is one deferred sync operation.
type Entry struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`    // operation discriminator, opaque to the queue
	Payload     json.RawMessage `json:"payload"` // operation payload, opaque to the queue
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
}

// Store persists queue entries. Eviction of the oldest entry beyond the cap
// happens inside Append so the queue length never exceeds the cap.
type Store interface {
	Append(ctx context.Context, e Entry, cap int) error
	List(ctx context.Context, n int) ([]Entry, error)
	Update(ctx context.Context, e Entry) error
	Remove(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
}

// Handler replays one deferred operation.
type Handler func(ctx context.Context, e Entry) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	Remaining int      `json:"remaining"`
}

// Queue is the bounded offline operation queue.
type Queue struct {
	store Store
	cap   int
	log   logger.Logger
	retry optimizer.RetryOptions
}

// New creates a queue over the given store with a hard entry cap.
func New(store Store, cap int, retry optimizer.RetryOptions, log logger.Logger) *Queue {
	if cap <= 0 {
		cap = 50
	}
	return &Queue{store: store, cap: cap, log: log, retry: retry}
}

// Enqueue defers an operation and returns its generated id.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload json.RawMessage) (string, error) {
	e := Entry{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		EnqueuedAt:  time.Now(),
		MaxAttempts: DefaultMaxAttempts,
	}
	if err := q.store.Append(ctx, e, q.cap); err != nil {
		return "", fmt.Errorf("failed to enqueue operation: %w", err)
	}
	q.log.Info("operation queued for offline replay",
		logger.String("id", e.ID),
		logger.String("kind", e.Kind))
	return e.ID, nil
}

// Len returns the current queue length.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.Len(ctx)
}

// Drain replays queued entries in batches of batchSize through the retry
// contract. Entries are removed only when they succeed or exhaust their own
// attempt cap; everything else stays queued for the next drain.
func (q *Queue) Drain(ctx context.Context, handler Handler, batchSize int) (*DrainResult, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	result := &DrainResult{}
	failedIDs := make(map[string]bool)

	for {
		entries, err := q.store.List(ctx, batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to list queue entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		progressed := false
		for _, e := range entries {
			entry := e
			if failedIDs[entry.ID] {
				// Already failed this pass; re-listed because it stayed
				// queued. One attempt per entry per drain.
				continue
			}
			_, err := optimizer.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, handler(ctx, entry)
			}, q.retry)

			if err == nil {
				if err := q.store.Remove(ctx, entry.ID); err != nil {
					return result, fmt.Errorf("failed to remove queue entry: %w", err)
				}
				result.Processed++
				progressed = true
				continue
			}

			entry.Attempts++
			failedIDs[entry.ID] = true
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.ID, err))

			if entry.Attempts >= entry.MaxAttempts {
				// Exhausted entries are dropped, not retried forever.
				q.log.Warn("dropping queue entry after exhausting attempts",
					logger.String("id", entry.ID),
					logger.Int("attempts", entry.Attempts))
				if err := q.store.Remove(ctx, entry.ID); err != nil {
					return result, fmt.Errorf("failed to drop queue entry: %w", err)
				}
				progressed = true
				continue
			}

			if err := q.store.Update(ctx, entry); err != nil {
				return result, fmt.Errorf("failed to update queue entry: %w", err)
			}
		}

		if !progressed {
			// Nothing succeeded or got dropped; stop instead of spinning
			// over the same failing batch.
			break
		}
	}

	remaining, err := q.store.Len(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count remaining entries: %w", err)
	}
	result.Remaining = remaining

	return result, nil
}
