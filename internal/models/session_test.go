package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testState = "0123456789abcdefXYZ"

func newTestSession(t *testing.T, now time.Time, ttl time.Duration) *Session {
	t.Helper()
	tok, err := NewTokenAt(now, "ya29.access-token", "1//refresh", now.Add(ttl), "openid", "")
	require.NoError(t, err)
	profile, err := NewIdentityProfile("1234", "Alice@Example.com", "Alice", "", "en")
	require.NoError(t, err)
	s, err := NewSession(nil, tok, profile, testState, now)
	require.NoError(t, err)
	return s
}

func TestNewSession(t *testing.T) {
	now := time.Now()
	s := newTestSession(t, now, time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.UserID)
	assert.Equal(t, "", s.OwnerID())
	assert.True(t, s.IsActive)
	assert.Equal(t, "alice@example.com", s.UserInfo.Email)
	assert.Equal(t, ProviderGoogle, s.UserInfo.Provider)
}

func TestNewSession_RejectsShortState(t *testing.T) {
	now := time.Now()
	tok, err := NewTokenAt(now, "ya29.access-token", "", now.Add(time.Hour), "", "")
	require.NoError(t, err)

	_, err = NewSession(nil, tok, IdentityProfile{}, "short", now)
	assert.ErrorIs(t, err, ErrStateTooShort)
}

func TestSession_IsValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, now, time.Hour)

	assert.True(t, s.IsValidAt(now))
	assert.False(t, s.IsValidAt(now.Add(time.Hour)), "expired token")

	inactive := s.Deactivated(now)
	assert.False(t, inactive.IsValidAt(now), "inactive session")
	assert.True(t, s.IsActive, "original value must not change")
}

func TestSession_WithToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, now, time.Minute)
	later := now.Add(2 * time.Minute)

	fresh, err := NewTokenAt(later, "ya29.fresh-access", "", later.Add(time.Hour), "", "")
	require.NoError(t, err)

	updated, err := s.WithToken(s.Token.Refreshed(fresh), later)
	require.NoError(t, err)
	assert.Equal(t, "ya29.fresh-access", updated.Token.AccessToken)
	assert.Equal(t, "1//refresh", updated.Token.RefreshToken)
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, "ya29.access-token", s.Token.AccessToken)

	_, err = s.Deactivated(later).WithToken(fresh, later)
	assert.ErrorIs(t, err, ErrSessionInactive)
}

func TestSession_BoundTo(t *testing.T) {
	now := time.Now()
	s := newTestSession(t, now, time.Hour)

	bound, err := s.BoundTo("user-1", now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", bound.OwnerID())

	again, err := bound.BoundTo("user-1", now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", again.OwnerID())

	_, err = bound.BoundTo("user-2", now)
	assert.ErrorIs(t, err, ErrUserAlreadyBound)
}

func TestNewIdentityProfile(t *testing.T) {
	tests := []struct {
		name       string
		providerID string
		email      string
		wantEmail  string
		wantName   string
		wantErr    error
	}{
		{name: "valid", providerID: "1", email: "Bob@Example.com", wantEmail: "bob@example.com", wantName: "Bob"},
		{name: "missing provider id", providerID: "", email: "bob@example.com", wantErr: ErrMissingProviderID},
		{name: "invalid email", providerID: "1", email: "not-an-email", wantErr: ErrInvalidEmail},
		{name: "display form rejected", providerID: "1", email: "Bob <bob@example.com>", wantErr: ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := ""
			if tt.wantErr == nil {
				name = tt.wantName
			}
			p, err := NewIdentityProfile(tt.providerID, tt.email, name, "", "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, p.Email)
			assert.Equal(t, tt.wantName, p.Name)
		})
	}
}

func TestNewIdentityProfile_DefaultsNameToLocalPart(t *testing.T) {
	p, err := NewIdentityProfile("1", "carol@example.com", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Name)
}

func TestUser_WithLinkage(t *testing.T) {
	now := time.Now()
	p, err := NewIdentityProfile("g-1", "dave@example.com", "Dave", "https://pic", "")
	require.NoError(t, err)

	u := User{ID: "u1", Email: "dave@example.com", Name: "Dave"}
	linked, changed := u.WithLinkage(p, now)
	assert.True(t, changed)
	assert.Equal(t, "g-1", linked.GoogleID)
	assert.Equal(t, "https://pic", linked.Picture)
	assert.Equal(t, ProviderGoogle, linked.Provider)

	_, changed = linked.WithLinkage(p, now)
	assert.False(t, changed)
}
