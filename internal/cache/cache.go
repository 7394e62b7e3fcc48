// Package cache implements the read-through, write-invalidate cache that
// fronts the identity and catalog stores. Entries are always derivable from
// the stores; the whole cache can be flushed at any time without
// correctness loss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// ListTTL bounds the staleness of list/page caches. Single-entity entries
// use NoTTL and are invalidated explicitly on mutation instead.
const (
	ListTTL = 120 * time.Second
	NoTTL   = time.Duration(0)
)

// Cache is the store-agnostic contract. Implementations must be safe for
// concurrent use. Values round-trip through JSON so cached data never
// aliases live store records.
type Cache interface {
	// Get unmarshals the cached value for key into dest, or returns ErrMiss.
	Get(ctx context.Context, key Key, dest any) error
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key Key, value any, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...Key) error
	// Clear drops every entry. Intended for tests and operational flushes.
	Clear(ctx context.Context) error
}
