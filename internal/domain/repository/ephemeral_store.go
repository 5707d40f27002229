// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"
)

// EphemeralStore is a TTL-bound key/value store for short-lived verification
// state (pending enrollments, one-time codes). Expiry is the store's job;
// callers never distinguish an expired entry from one that never existed.
type EphemeralStore interface {
	// Set writes value under key with the given time-to-live, replacing any
	// previous value and its remaining TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key. The second result is false when the key
	// is absent or has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Take atomically reads and removes key. The second result is false when
	// the key was absent, so under concurrent callers exactly one observes
	// the value.
	Take(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
