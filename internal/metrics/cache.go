package metrics

import (
	"context"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
)

// CacheWrapper provides a read-through cache for gauge counts.
// It queries the database on cache miss and updates the cache for
// subsequent requests, so several instances share one query per TTL.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetActiveSessionsCount retrieves the count of active sessions across all users.
func (m *CacheWrapper) GetActiveSessionsCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.cache.GetWithFetch(ctx, "sessions:active", ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountAllActiveSessions(ctx)
		},
	)
}

// GetAccountsCount retrieves the count of primary or secondary accounts.
func (m *CacheWrapper) GetAccountsCount(
	ctx context.Context,
	primary bool,
	ttl time.Duration,
) (int64, error) {
	key := "accounts:secondary"
	if primary {
		key = "accounts:primary"
	}
	return m.cache.GetWithFetch(ctx, key, ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountAccountsByKind(ctx, primary)
		},
	)
}

// UpdateGauges refreshes every periodic gauge. Failed queries are recorded
// and returned to the caller for logging; the remaining gauges still update.
func UpdateGauges(
	ctx context.Context,
	wrapper *CacheWrapper,
	m Recorder,
	ttl time.Duration,
) map[string]error {
	failed := map[string]error{}

	if n, err := wrapper.GetActiveSessionsCount(ctx, ttl); err != nil {
		m.RecordDatabaseQueryError("count_active_sessions")
		failed["count_active_sessions"] = err
	} else {
		m.SetActiveSessionsCount(int(n))
	}

	for _, kind := range []struct {
		label   string
		primary bool
	}{{"primary", true}, {"secondary", false}} {
		op := "count_" + kind.label + "_accounts"
		if n, err := wrapper.GetAccountsCount(ctx, kind.primary, ttl); err != nil {
			m.RecordDatabaseQueryError(op)
			failed[op] = err
		} else {
			m.SetAccountsCount(kind.label, int(n))
		}
	}

	return failed
}
