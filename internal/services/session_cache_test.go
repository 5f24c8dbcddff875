package services

import (
	"context"
	"testing"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/cache"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCachedStore(t *testing.T, env *testEnv, ttl time.Duration) (*CachedSessionStore, *cache.MemoryCache[models.Session]) {
	t.Helper()
	c := cache.NewMemoryCache[models.Session]()
	t.Cleanup(func() { _ = c.Close() })
	return NewCachedSessionStore(env.store, c, ttl, metrics.NewNoopMetrics(), zap.NewNop()), c
}

func TestCachedSessionStore_ReadThrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	login := env.login(t, "code-1", "gail@example.com")
	cached, c := newCachedStore(t, env, time.Minute)

	first, err := cached.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// a write that bypasses the cache is invisible until eviction
	require.NoError(t, env.store.DeactivateSession(ctx, login.SessionID))
	second, err := cached.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)

	_, err = c.Get(ctx, login.SessionID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "raw session ids are never used as keys")
}

func TestCachedSessionStore_WritesEvict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	login := env.login(t, "code-1", "hugo@example.com")
	cached, c := newCachedStore(t, env, time.Minute)

	_, err := cached.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	require.NoError(t, cached.DeactivateSession(ctx, login.SessionID))
	assert.Equal(t, 0, c.Len())

	session, err := cached.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.Equal(t, 0, c.Len(), "inactive sessions are not cached")
}

func TestCachedSessionStore_PersistLoginEvictsDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.login(t, "code-1", "iris@example.com")
	cached, c := newCachedStore(t, env, time.Minute)

	_, err := cached.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	env.provider.addProfile(t, "code-2", "iris@example.com")
	tok, err := env.provider.Exchange(ctx, "code-2")
	require.NoError(t, err)
	profile, err := env.provider.FetchProfile(ctx, tok)
	require.NoError(t, err)
	next, err := models.NewSession(&first.User.ID, tok, profile, loginState(t), time.Now())
	require.NoError(t, err)

	ids, err := cached.PersistLogin(ctx, first.User, false, next, true)
	require.NoError(t, err)
	assert.Equal(t, []string{first.SessionID}, ids)
	assert.Equal(t, 0, c.Len())

	old, err := cached.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
}

func TestCachedSessionStore_TTLBoundedByTokenExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	login := env.login(t, "code-1", "jon@example.com")
	env.setToken(t, login.SessionID, 50*time.Millisecond, "")
	cached, c := newCachedStore(t, env, time.Hour)

	_, err := cached.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	time.Sleep(100 * time.Millisecond)
	_, err = c.Get(ctx, sessionCacheKey(login.SessionID))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCachedSessionStore_NotFoundPassesThrough(t *testing.T) {
	env := newTestEnv(t)
	cached, c := newCachedStore(t, env, time.Minute)

	_, err := cached.GetSession(context.Background(), "missing")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
