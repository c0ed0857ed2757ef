package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// GetNotes retrieves the free-text notes for a node. Missing notes are an
// empty string, not an error.
func (s *Store) GetNotes(ctx context.Context, nodeID string) (string, error) {
	notes, err := s.client.Get(ctx, NotesKey(nodeID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get notes for %s: %w", nodeID, err)
	}
	return notes, nil
}

// SetNotes stores the free-text notes for a node.
func (s *Store) SetNotes(ctx context.Context, nodeID, notes string) error {
	if err := s.client.Set(ctx, NotesKey(nodeID), notes, 0).Err(); err != nil {
		return fmt.Errorf("failed to set notes for %s: %w", nodeID, err)
	}
	return nil
}

// GetTags retrieves the tag set for a node. A missing entry is an empty set.
func (s *Store) GetTags(ctx context.Context, nodeID string) ([]string, error) {
	data, err := s.client.Get(ctx, TagsKey(nodeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tags for %s: %w", nodeID, err)
	}

	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", nodeID, err)
	}
	return tags, nil
}

// SetTags stores the tag set for a node.
func (s *Store) SetTags(ctx context.Context, nodeID string, tags []string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags for %s: %w", nodeID, err)
	}
	if err := s.client.Set(ctx, TagsKey(nodeID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set tags for %s: %w", nodeID, err)
	}
	return nil
}
