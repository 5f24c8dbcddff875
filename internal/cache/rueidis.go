package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"

	"github.com/redis/rueidis"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RueidisOptions configures a Redis-backed cache.
type RueidisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// ClientTTL enables RESP3 client-side caching of reads for this long.
	// Redis invalidates the local copy when the key changes. Zero disables it.
	ClientTTL time.Duration
}

// RueidisCache implements Cache using Redis via rueidis. Values are stored
// JSON-encoded so several instances can share sessions.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisCache creates a new Redis cache instance using rueidis.
func NewRueidisCache[T any](ctx context.Context, opts RueidisOptions) (*RueidisCache[T], error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: opts.ClientTTL <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return newRueidisCache[T](client, opts), nil
}

func newRueidisCache[T any](client rueidis.Client, opts RueidisOptions) *RueidisCache[T] {
	return &RueidisCache[T]{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		clientTTL: opts.ClientTTL,
	}
}

// Get retrieves a value from Redis.
func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	var resp rueidis.RedisResult
	if r.clientTTL > 0 {
		resp = r.client.DoCache(ctx, r.client.B().Get().Key(r.keyPrefix+key).Cache(), r.clientTTL)
	} else {
		resp = r.client.Do(ctx, r.client.B().Get().Key(r.keyPrefix+key).Build())
	}

	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	raw, err := resp.AsBytes()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// Set stores a value in Redis with TTL. Redis expiry has second granularity,
// so a TTL under one second removes the key instead.
func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl < time.Second {
		return r.Delete(ctx, key)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	cmd := r.client.B().Set().
		Key(r.keyPrefix + key).
		Value(rueidis.BinaryString(encoded)).
		Ex(ttl).
		Build()

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key from Redis.
func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(r.keyPrefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// GetWithFetch retrieves a value using the cache-aside pattern.
// An unavailable Redis falls through to fetchFunc instead of failing the read.
func (r *RueidisCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := r.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = r.Set(ctx, key, value, ttl)
	return value, nil
}
