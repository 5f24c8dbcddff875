package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MinStateLength is the shortest CSRF state accepted on a Session
const MinStateLength = 16

var (
	ErrStateTooShort    = errors.New("session state is too short")
	ErrSessionInactive  = errors.New("session is no longer active")
	ErrUserAlreadyBound = errors.New("session is already bound to another user")
)

// Session binds a resolved user to a provider token.
// A deactivated Session is terminal; a new login creates a new Session.
type Session struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	UserID    *string         `gorm:"index" json:"user_id"`
	Token     Token           `gorm:"embedded;embeddedPrefix:token_" json:"token"`
	UserInfo  IdentityProfile `gorm:"embedded;embeddedPrefix:user_info_" json:"user_info"`
	State     string          `gorm:"not null" json:"state"`
	IsActive  bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSession creates an active session for a fresh authorization-code exchange.
// userID may be nil when the owning user is not resolved yet.
func NewSession(userID *string, token Token, profile IdentityProfile, state string, now time.Time) (*Session, error) {
	if len(state) < MinStateLength {
		return nil, ErrStateTooShort
	}
	if token.IsExpiredAt(now) {
		return nil, ErrTokenAlreadyExpired
	}
	return &Session{
		ID:        uuid.New().String(),
		UserID:    cloneString(userID),
		Token:     token,
		UserInfo:  profile,
		State:     state,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsValid reports whether the session can authenticate requests
func (s *Session) IsValid() bool {
	return s.IsValidAt(time.Now())
}

// IsValidAt reports whether the session can authenticate requests at now
func (s *Session) IsValidAt(now time.Time) bool {
	return s.IsActive && !s.Token.IsExpiredAt(now)
}

// OwnerID returns the resolved user id, or "" when unbound
func (s *Session) OwnerID() string {
	if s.UserID == nil {
		return ""
	}
	return *s.UserID
}

// WithToken returns a copy carrying a refreshed token.
func (s Session) WithToken(token Token, now time.Time) (Session, error) {
	if !s.IsActive {
		return s, ErrSessionInactive
	}
	if token.IsExpiredAt(now) {
		return s, ErrTokenAlreadyExpired
	}
	s.Token = token
	s.UpdatedAt = now
	return s, nil
}

// BoundTo returns a copy owned by userID.
func (s Session) BoundTo(userID string, now time.Time) (Session, error) {
	if s.UserID != nil && *s.UserID != userID {
		return s, ErrUserAlreadyBound
	}
	s.UserID = &userID
	s.UpdatedAt = now
	return s, nil
}

// Deactivated returns an inactive copy
func (s Session) Deactivated(now time.Time) Session {
	s.IsActive = false
	s.UpdatedAt = now
	return s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
