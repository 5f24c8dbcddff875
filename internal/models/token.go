package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MinAccessTokenLength is the shortest access token accepted from a provider
	MinAccessTokenLength = 10

	TokenTypeBearer = "Bearer"
)

var (
	ErrInvalidAccessToken  = errors.New("access token is missing or too short")
	ErrTokenAlreadyExpired = errors.New("token is already expired")
)

// Token holds the provider credentials bound to a Session.
// It is a value type: refreshes produce a new Token rather than mutating one.
type Token struct {
	AccessToken  string    `gorm:"type:text;not null" json:"access_token"`
	RefreshToken string    `gorm:"type:text" json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"token_type"`
}

// NewToken builds a Token that expires expiresIn from now.
func NewToken(
	accessToken, refreshToken string,
	expiresIn time.Duration,
	scope, tokenType string,
) (Token, error) {
	now := time.Now()
	return NewTokenAt(now, accessToken, refreshToken, now.Add(expiresIn), scope, tokenType)
}

// NewTokenAt builds a Token with an absolute expiry, validated against now.
func NewTokenAt(
	now time.Time,
	accessToken, refreshToken string,
	expiresAt time.Time,
	scope, tokenType string,
) (Token, error) {
	if len(strings.TrimSpace(accessToken)) < MinAccessTokenLength {
		return Token{}, ErrInvalidAccessToken
	}
	if !now.Before(expiresAt) {
		return Token{}, fmt.Errorf("%w: expires_at=%s", ErrTokenAlreadyExpired, expiresAt.Format(time.RFC3339))
	}
	if tokenType == "" {
		tokenType = TokenTypeBearer
	}
	return Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Scope:        scope,
		TokenType:    tokenType,
	}, nil
}

// IsExpired reports whether the access token is expired right now
func (t Token) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the access token is expired at the given instant
func (t Token) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, never negative
func (t Token) ExpiresIn() time.Duration {
	return t.ExpiresInAt(time.Now())
}

// ExpiresInAt returns the remaining lifetime at the given instant, never negative
func (t Token) ExpiresInAt(now time.Time) time.Duration {
	if remaining := t.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// ExpiresInSeconds returns the remaining lifetime in whole seconds
func (t Token) ExpiresInSeconds() int64 {
	return int64(t.ExpiresIn() / time.Second)
}

// HasRefreshToken returns true if the token can be refreshed without re-authentication
func (t Token) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// Scopes splits the space-delimited scope string
func (t Token) Scopes() []string {
	return strings.Fields(t.Scope)
}

// Refreshed merges a freshly minted token with this one.
// Providers usually omit the refresh token on refresh, so the old one is kept.
func (t Token) Refreshed(next Token) Token {
	if next.RefreshToken == "" {
		next.RefreshToken = t.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = t.Scope
	}
	return next
}
