package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/marksync/marksync/internal/codec"
)

// Store handles Redis operations for tree snapshots, resolution history,
// the offline queue and node metadata.
type Store struct {
	client *redis.Client
	codec  *codec.Codec
}

// NewStore creates a new Redis store. The codec compresses snapshots at the
// transfer boundary.
func NewStore(client *redis.Client, c *codec.Codec) *Store {
	if c == nil {
		c = codec.New(codec.DefaultMaxEntries)
	}
	return &Store{
		client: client,
		codec:  c,
	}
}
