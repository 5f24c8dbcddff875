package core

import (
	"context"
	"time"
)

// Cache[T] is a TTL key-value cache. T is stored by value (JSON-encoded for
// remote backends), so it must survive a marshal round trip.
type Cache[T any] interface {
	// Get returns cache.ErrCacheMiss if the key does not exist or has expired.
	Get(ctx context.Context, key string) (T, error)

	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Close() error

	Health(ctx context.Context) error

	// GetWithFetch is the cache-aside read. On miss, fetchFunc is called and a
	// successful result is stored with ttl. A ttl <= 0 skips the store.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)
}
