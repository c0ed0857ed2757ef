package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marksync/marksync/internal/codec"
	"github.com/marksync/marksync/internal/domain"
)

// SaveRemoteSnapshot compresses and stores the remote tree snapshot.
// The compressed payload is what crosses the transfer boundary.
func (s *Store) SaveRemoteSnapshot(ctx context.Context, nodes []*domain.BookmarkNode) error {
	return s.saveSnapshot(ctx, KeyRemoteSnapshot, nodes)
}

// LoadRemoteSnapshot retrieves and decompresses the remote tree snapshot.
// Returns (nil, nil) when no remote state exists yet.
func (s *Store) LoadRemoteSnapshot(ctx context.Context) ([]*domain.BookmarkNode, error) {
	return s.loadSnapshot(ctx, KeyRemoteSnapshot)
}

// SaveLocalSnapshot persists the local tree for durability across restarts.
func (s *Store) SaveLocalSnapshot(ctx context.Context, nodes []*domain.BookmarkNode) error {
	return s.saveSnapshot(ctx, KeyLocalSnapshot, nodes)
}

// LoadLocalSnapshot retrieves the persisted local tree, or (nil, nil) when
// none has been saved.
func (s *Store) LoadLocalSnapshot(ctx context.Context) ([]*domain.BookmarkNode, error) {
	return s.loadSnapshot(ctx, KeyLocalSnapshot)
}

// SaveRawSnapshot stores an already-compressed payload under the remote
// snapshot key. Used when replaying deferred uploads from the offline queue.
func (s *Store) SaveRawSnapshot(ctx context.Context, payload []byte) error {
	if err := s.client.Set(ctx, KeyRemoteSnapshot, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save raw snapshot: %w", err)
	}
	return nil
}

func (s *Store) saveSnapshot(ctx context.Context, key string, nodes []*domain.BookmarkNode) error {
	payload, err := s.codec.Compress(nodes)
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (s *Store) loadSnapshot(ctx context.Context, key string) ([]*domain.BookmarkNode, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // no snapshot yet
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var payload codec.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	var nodes []*domain.BookmarkNode
	if err := s.codec.Decompress(&payload, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	return nodes, nil
}
