package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"go.uber.org/zap"
)

// Refresh triggers, used as metric labels
const (
	TriggerExplicit  = "explicit"
	TriggerProactive = "proactive"
	TriggerReactive  = "reactive"
)

var _ core.TokenLifecycle = (*Manager)(nil)

// Manager applies the refresh policy to session tokens: refresh proactively
// once the remaining lifetime drops below the threshold, or reactively after
// a downstream call reports ErrCredentialExpired.
//
// Concurrent refreshes of one session are not coordinated. Each yields a
// valid token and the last UpdateSession wins.
type Manager struct {
	refresher core.TokenRefresher
	sessions  core.SessionStore
	threshold time.Duration
	metrics   core.Recorder
	log       *zap.Logger
	now       func() time.Time
}

func NewManager(
	refresher core.TokenRefresher,
	sessions core.SessionStore,
	threshold time.Duration,
	m core.Recorder,
	log *zap.Logger,
) *Manager {
	return &Manager{
		refresher: refresher,
		sessions:  sessions,
		threshold: threshold,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (m *Manager) Threshold() time.Duration {
	return m.threshold
}

// IsExpired reports whether token is expired now
func (m *Manager) IsExpired(token models.Token) bool {
	return token.IsExpiredAt(m.now())
}

// ExpiresInSeconds returns max(0, expires_at - now) in whole seconds
func (m *Manager) ExpiresInSeconds(token models.Token) int64 {
	return int64(token.ExpiresInAt(m.now()) / time.Second)
}

// NeedsRefresh reports whether the remaining lifetime is below the threshold
func (m *Manager) NeedsRefresh(token models.Token) bool {
	return token.ExpiresInAt(m.now()) < m.threshold
}

// Refresh unconditionally refreshes the session's token and persists it.
func (m *Manager) Refresh(ctx context.Context, session *models.Session) (*models.Session, error) {
	return m.refresh(ctx, session, TriggerExplicit)
}

// EnsureFresh refreshes the session when its token is inside the threshold.
// A failed refresh of a still-valid token is logged and the session returned
// unchanged; an expired token without a usable refresh is an error.
func (m *Manager) EnsureFresh(
	ctx context.Context,
	session *models.Session,
) (*models.Session, error) {
	if !m.NeedsRefresh(session.Token) {
		return session, nil
	}

	refreshed, err := m.refresh(ctx, session, TriggerProactive)
	if err == nil {
		return refreshed, nil
	}
	if m.IsExpired(session.Token) {
		return nil, err
	}
	if !errors.Is(err, ErrRefreshTokenMissing) {
		m.log.Warn("proactive token refresh failed, keeping current token",
			zap.String("session_id", session.ID),
			zap.Int64("expires_in", m.ExpiresInSeconds(session.Token)),
			zap.Error(err),
		)
	}
	return session, nil
}

func (m *Manager) refresh(
	ctx context.Context,
	session *models.Session,
	trigger string,
) (*models.Session, error) {
	if !session.IsActive {
		return nil, models.ErrSessionInactive
	}
	if !session.Token.HasRefreshToken() {
		return nil, ErrRefreshTokenMissing
	}

	fresh, err := m.refresher.Refresh(ctx, session.Token.RefreshToken)
	if err != nil {
		m.metrics.RecordTokenRefresh(trigger, false)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	updated, err := session.WithToken(session.Token.Refreshed(fresh), m.now())
	if err != nil {
		m.metrics.RecordTokenRefresh(trigger, false)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if err := m.sessions.UpdateSession(ctx, &updated); err != nil {
		m.metrics.RecordTokenRefresh(trigger, false)
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	m.metrics.RecordTokenRefresh(trigger, true)
	m.log.Debug("token refreshed",
		zap.String("session_id", session.ID),
		zap.String("trigger", trigger),
	)
	return &updated, nil
}

// WithReactiveRefresh runs call with the session's token. If call fails with
// ErrCredentialExpired the token is refreshed once and call retried with the
// new token. The returned session is the one holding the token that was used.
func WithReactiveRefresh[T any](
	ctx context.Context,
	m *Manager,
	session *models.Session,
	call func(ctx context.Context, token models.Token) (T, error),
) (T, *models.Session, error) {
	result, err := call(ctx, session.Token)
	if err == nil || !errors.Is(err, ErrCredentialExpired) {
		return result, session, err
	}

	refreshed, rerr := m.refresh(ctx, session, TriggerReactive)
	if rerr != nil {
		var zero T
		return zero, session, errors.Join(err, rerr)
	}
	result, err = call(ctx, refreshed.Token)
	return result, refreshed, err
}
