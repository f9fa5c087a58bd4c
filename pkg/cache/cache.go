// Package cache provides generic, thread-safe cache implementations used by the
// OSDU client layer.
//
// Two cache types are offered:
//   - TTLCache: Time-To-Live eviction based on expiry (introspection results,
//     normalized search pages)
//   - LRUCache: Least Recently Used eviction based on size (compiled schema
//     definitions)
//
// All cache implementations are thread-safe with built-in statistics (always
// enabled for observability) and optional Prometheus metrics integration via
// functional options.
package cache

import (
	"context"
	"time"

	"github.com/c360/osdugate/errors"
)

// Cache represents a generic cache interface that all cache implementations must satisfy.
// The cache is parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry was created, false if updated.
	// Returns an error if the operation fails (e.g., invalid key).
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed and was deleted.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns a slice of all keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and releases any resources (e.g., background goroutines).
	Close() error
}

// EvictCallback is called when an entry is evicted from the cache.
// It receives the key and value of the evicted entry.
type EvictCallback[V any] func(key string, value V)

// NewTTL creates a TTL cache. Entries expire ttl after they are set; a
// background goroutine sweeps expired entries every cleanupInterval. The
// goroutine stops when ctx is cancelled or Close is called.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewTTL", "ttl must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = ttl
	}
	return newTTLCache(ctx, ttl, cleanupInterval, applyOptions(options...))
}

// NewLRU creates an LRU cache bounded to maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "maxSize must be positive")
	}
	return newLRUCache(maxSize, applyOptions(options...))
}

// validateKey validates a cache key for basic requirements.
// Returns a classified error if the key is invalid.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrQueryInvalid, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
