// Package storage defines the persistence contract for the application. The
// core depends on a minimal key-value collaborator; everything it persists
// (auth token, challenge ledger state) round-trips through JSON strings.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports a missing key.
var ErrNotFound = errors.New("key not found")

// KV is generic get/set/remove persistence by string key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
