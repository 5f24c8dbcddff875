package services

import (
	"context"
	"errors"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"go.uber.org/zap"
)

const revokeWarning = "token revocation with the provider failed; the grant may still be active"

// SessionService resolves, refreshes and ends sessions
type SessionService struct {
	sessions core.SessionStore
	users    core.UserStore
	tokens   core.TokenLifecycle
	provider core.IdentityProvider
	metrics  core.Recorder
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionService(
	sessions core.SessionStore,
	users core.UserStore,
	tokens core.TokenLifecycle,
	provider core.IdentityProvider,
	m core.Recorder,
	log *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		provider: provider,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Resolve turns a session id into a valid session and its user. Tokens inside
// the refresh threshold are refreshed on the way.
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (*ResolvedSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, s.reject("inactive", NewAuthError(ErrSessionInvalid, "session is no longer active", nil))
	}

	session, err = s.tokens.EnsureFresh(ctx, session)
	if err != nil {
		if errors.Is(err, token.ErrRefreshTokenMissing) {
			return nil, s.reject("refresh_missing", NewAuthError(
				ErrRefreshTokenMissing, "session expired and cannot be refreshed; sign in again", err))
		}
		return nil, s.reject("expired", NewAuthError(ErrSessionInvalid, "session token has expired", err))
	}
	if !session.IsValidAt(s.now()) {
		return nil, s.reject("expired", NewAuthError(ErrSessionInvalid, "session token has expired", nil))
	}
	if session.UserID == nil {
		return nil, s.reject("unbound", NewAuthError(ErrSessionInvalid, "session has no user", nil))
	}

	user, err := s.users.GetUserByID(ctx, *session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, s.reject("user_missing", NewAuthError(ErrSessionInvalid, "session user no longer exists", err))
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, s.reject("user_inactive", NewAuthError(ErrSessionInvalid, "user is disabled", nil))
	}
	return &ResolvedSession{Session: session, User: user}, nil
}

// Me describes the caller behind sessionID
func (s *SessionService) Me(ctx context.Context, sessionID string) (*MeResult, error) {
	resolved, err := s.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Describe(resolved), nil
}

// Describe builds the /me view of an already resolved session
func (s *SessionService) Describe(resolved *ResolvedSession) *MeResult {
	return &MeResult{
		User: resolved.User,
		SessionInfo: SessionInfo{
			Provider:       resolved.Session.UserInfo.Provider,
			SessionActive:  resolved.Session.IsValidAt(s.now()),
			TokenExpiresIn: int64(resolved.Session.Token.ExpiresInAt(s.now()) / time.Second),
		},
	}
}

// Refresh mints a new access token for sessionID. A session without a
// refresh token fails with ErrRefreshTokenMissing and needs a new login.
func (s *SessionService) Refresh(ctx context.Context, sessionID string) (*RefreshResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, NewAuthError(ErrSessionInvalid, "session is no longer active", nil)
	}

	updated, err := s.tokens.Refresh(ctx, session)
	switch {
	case errors.Is(err, token.ErrRefreshTokenMissing):
		return nil, NewAuthError(ErrRefreshTokenMissing, "no refresh token available; sign in again", err)
	case errors.Is(err, token.ErrRefreshFailed):
		return nil, NewAuthError(ErrSessionInvalid, "the provider rejected the refresh; sign in again", err)
	case err != nil:
		return nil, err
	}

	return &RefreshResult{
		AccessToken: updated.Token.AccessToken,
		ExpiresIn:   int64(updated.Token.ExpiresInAt(s.now()) / time.Second),
	}, nil
}

// Logout revokes the session's tokens at the provider and deactivates the
// session. Revocation failures never block the local deactivation.
func (s *SessionService) Logout(ctx context.Context, sessionID string) (*LogoutResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return &LogoutResult{Success: true, Message: "session already logged out"}, nil
	}

	revoked := s.revoke(ctx, session)

	if err := s.sessions.DeactivateSession(ctx, session.ID); err != nil {
		return nil, err
	}

	s.metrics.RecordTokenRevoke(revoked)
	s.metrics.RecordLogout(s.now().Sub(session.CreatedAt))
	s.log.Info("session logged out",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.OwnerID()),
		zap.Bool("token_revoked", revoked),
	)

	result := &LogoutResult{
		Success:      true,
		TokenRevoked: revoked,
		Message:      "logged out successfully",
	}
	if !revoked {
		result.Warning = revokeWarning
	}
	return result, nil
}

// revoke tries the access token, then the refresh token. Revoking either
// ends the grant at Google, so one success is enough.
func (s *SessionService) revoke(ctx context.Context, session *models.Session) bool {
	accessErr := s.provider.Revoke(ctx, session.Token.AccessToken)
	if accessErr != nil {
		s.log.Warn("access token revocation failed",
			zap.String("session_id", session.ID), zap.Error(accessErr))
	}
	if !session.Token.HasRefreshToken() {
		return accessErr == nil
	}

	refreshErr := s.provider.Revoke(ctx, session.Token.RefreshToken)
	if refreshErr != nil && accessErr != nil {
		s.log.Warn("refresh token revocation failed",
			zap.String("session_id", session.ID), zap.Error(refreshErr))
	}
	return accessErr == nil || refreshErr == nil
}

func (s *SessionService) load(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, s.reject("missing", NewAuthError(ErrSessionNotFound, "session id is required", nil))
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, s.reject("not_found", NewAuthError(ErrSessionNotFound, "session not found", err))
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) reject(reason string, err error) error {
	s.metrics.RecordSessionRejected(reason)
	return err
}
