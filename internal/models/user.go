package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Name      string     `json:"name"`
	Role      string     `gorm:"not null;default:'user'" json:"role"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`

	// OAuth linkage
	GoogleID string `gorm:"index" json:"google_id,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserFromProfile builds (but does not persist) a user for a never-seen email
func NewUserFromProfile(p IdentityProfile, now time.Time) *User {
	return &User{
		ID:        uuid.New().String(),
		Email:     p.Email,
		Name:      p.Name,
		Role:      RoleUser,
		IsActive:  true,
		GoogleID:  p.ProviderID,
		Picture:   p.Picture,
		Provider:  p.Provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// WithLinkage fills OAuth linkage fields that are still empty.
// The second return value is false when nothing changed.
func (u User) WithLinkage(p IdentityProfile, now time.Time) (User, bool) {
	changed := false
	if u.GoogleID == "" && p.ProviderID != "" {
		u.GoogleID = p.ProviderID
		changed = true
	}
	if u.Picture == "" && p.Picture != "" {
		u.Picture = p.Picture
		changed = true
	}
	if u.Provider == "" && p.Provider != "" {
		u.Provider = p.Provider
		changed = true
	}
	if u.Name == "" && p.Name != "" {
		u.Name = p.Name
		changed = true
	}
	if changed {
		u.UpdatedAt = now
	}
	return u, changed
}

// WithLastLogin returns a copy stamped with a login time
func (u User) WithLastLogin(at time.Time) User {
	u.LastLogin = &at
	u.UpdatedAt = at
	return u
}
