package services

import (
	"context"
	"errors"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/cache"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/util"

	"go.uber.org/zap"
)

const sessionCacheName = "session"

// SessionBackend is the persisted store behind CachedSessionStore
type SessionBackend interface {
	core.SessionStore
	core.LoginWriter
}

var (
	_ core.SessionStore = (*CachedSessionStore)(nil)
	_ core.LoginWriter  = (*CachedSessionStore)(nil)
)

// CachedSessionStore is a cache-aside layer over the session store. Entries
// live at most ttl and never past the cached token's expiry. Every write
// through this type evicts the affected ids.
type CachedSessionStore struct {
	backend SessionBackend
	cache   core.Cache[models.Session]
	ttl     time.Duration
	metrics core.Recorder
	log     *zap.Logger
	now     func() time.Time
}

func NewCachedSessionStore(
	backend SessionBackend,
	c core.Cache[models.Session],
	ttl time.Duration,
	m core.Recorder,
	log *zap.Logger,
) *CachedSessionStore {
	return &CachedSessionStore{
		backend: backend,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// session ids are bearer credentials, so only their hash reaches the cache
func sessionCacheKey(id string) string {
	return "session:" + util.SHA256Hex(id)
}

func (c *CachedSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	key := sessionCacheKey(id)
	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		c.metrics.RecordCacheHit(sessionCacheName)
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("session cache read failed", zap.Error(err))
	}
	c.metrics.RecordCacheMiss(sessionCacheName)

	session, err := c.backend.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	ttl := min(c.ttl, session.Token.ExpiresInAt(c.now()))
	if ttl > 0 && session.IsActive {
		if err := c.cache.Set(ctx, key, *session, ttl); err != nil {
			c.log.Warn("session cache write failed", zap.Error(err))
		}
	}
	return session, nil
}

func (c *CachedSessionStore) CreateSession(ctx context.Context, session *models.Session) error {
	return c.backend.CreateSession(ctx, session)
}

func (c *CachedSessionStore) UpdateSession(ctx context.Context, session *models.Session) error {
	err := c.backend.UpdateSession(ctx, session)
	c.evict(ctx, session.ID)
	return err
}

func (c *CachedSessionStore) DeactivateSession(ctx context.Context, id string) error {
	err := c.backend.DeactivateSession(ctx, id)
	c.evict(ctx, id)
	return err
}

func (c *CachedSessionStore) DeactivateUserSessions(
	ctx context.Context,
	userID, exceptID string,
) ([]string, error) {
	ids, err := c.backend.DeactivateUserSessions(ctx, userID, exceptID)
	c.evict(ctx, ids...)
	return ids, err
}

func (c *CachedSessionStore) CountActiveSessions(ctx context.Context, userID string) (int64, error) {
	return c.backend.CountActiveSessions(ctx, userID)
}

func (c *CachedSessionStore) PersistLogin(
	ctx context.Context,
	user *models.User,
	isNew bool,
	session *models.Session,
	deactivateOthers bool,
) ([]string, error) {
	ids, err := c.backend.PersistLogin(ctx, user, isNew, session, deactivateOthers)
	c.evict(ctx, ids...)
	return ids, err
}

func (c *CachedSessionStore) evict(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := c.cache.Delete(ctx, sessionCacheKey(id)); err != nil {
			c.log.Warn("session cache eviction failed", zap.Error(err))
		}
	}
}
