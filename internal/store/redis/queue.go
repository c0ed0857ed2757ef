package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marksync/marksync/internal/queue"
)

// QueueStore adapts the shared client to the offline queue's store contract.
// Entry ids live in a FIFO list; payloads are stored per-id so entries can
// be updated and removed without rewriting the list.
type QueueStore struct {
	store *Store
}

// Queue returns the offline queue store view.
func (s *Store) Queue() *QueueStore {
	return &QueueStore{store: s}
}

// Append pushes an entry onto the tail of the queue, evicting the oldest
// entry when the cap is exceeded.
func (q *QueueStore) Append(ctx context.Context, e queue.Entry, cap int) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	pipe := q.store.client.TxPipeline()
	pipe.Set(ctx, QueueEntryKey(e.ID), data, 0)
	pipe.RPush(ctx, KeyQueueIDs, e.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append queue entry: %w", err)
	}

	if cap <= 0 {
		return nil
	}

	length, err := q.store.client.LLen(ctx, KeyQueueIDs).Result()
	if err != nil {
		return fmt.Errorf("failed to measure queue: %w", err)
	}
	for length > int64(cap) {
		oldest, err := q.store.client.LPop(ctx, KeyQueueIDs).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return fmt.Errorf("failed to evict oldest queue entry: %w", err)
		}
		if err := q.store.client.Del(ctx, QueueEntryKey(oldest)).Err(); err != nil {
			return fmt.Errorf("failed to delete evicted entry: %w", err)
		}
		length--
	}

	return nil
}

// List returns up to n entries from the head of the queue, oldest first.
func (q *QueueStore) List(ctx context.Context, n int) ([]queue.Entry, error) {
	if n <= 0 {
		n = 10
	}

	ids, err := q.store.client.LRange(ctx, KeyQueueIDs, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue ids: %w", err)
	}

	entries := make([]queue.Entry, 0, len(ids))
	for _, id := range ids {
		data, err := q.store.client.Get(ctx, QueueEntryKey(id)).Bytes()
		if err != nil {
			// Entry payload missing; drop the dangling id.
			_ = q.store.client.LRem(ctx, KeyQueueIDs, 1, id).Err()
			continue
		}
		var e queue.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Update rewrites an entry's payload (attempt counters after a failed replay).
func (q *QueueStore) Update(ctx context.Context, e queue.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	if err := q.store.client.Set(ctx, QueueEntryKey(e.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}
	return nil
}

// Remove deletes an entry and its id from the queue.
func (q *QueueStore) Remove(ctx context.Context, id string) error {
	pipe := q.store.client.TxPipeline()
	pipe.LRem(ctx, KeyQueueIDs, 1, id)
	pipe.Del(ctx, QueueEntryKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

// Len returns the queue length.
func (q *QueueStore) Len(ctx context.Context) (int, error) {
	length, err := q.store.client.LLen(ctx, KeyQueueIDs).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to measure queue: %w", err)
	}
	return int(length), nil
}
