// Package store provides the key-value abstraction the session cache and the grant ledger are
// built on. Implementations must give strong single-key consistency: Update and Take are atomic
// with respect to every other operation on the same key.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its TTL has lapsed.
var ErrNotFound = errors.New("store: key not found")

// ErrExists is returned by Create when a live entry already holds the key.
var ErrExists = errors.New("store: key already exists")

// UpdateFunc receives the current value (nil when the key does not exist) and returns the value to
// write. Returning an error aborts the update and leaves the stored value untouched.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store is the key-value contract. A zero TTL means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Create writes value only if key is absent or expired, atomically, and fails with ErrExists
	// otherwise.
	Create(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Take atomically returns and removes the value stored under key.
	Take(ctx context.Context, key string) ([]byte, error)
	// Update performs an atomic read-modify-write of one key. An existing TTL is preserved.
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)
	// Scan returns every live entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}
