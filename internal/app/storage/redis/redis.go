// Package redis provides a Redis-backed key-value store for deployments
// where ledger and session state must survive process restarts on a shared
// backend.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/solsnap/walletcore/internal/app/storage"
)

// Store is a Redis implementation of storage.KV.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.KV = (*Store)(nil)

// New creates a store over an existing Redis client. All keys are namespaced
// under the given prefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "walletcore:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}
