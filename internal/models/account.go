package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is one mailbox attached to a user.
// At most one row exists per (user_id, email).
type Account struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"not null;uniqueIndex:idx_accounts_user_email,priority:1" json:"user_id"`
	Email       string     `gorm:"not null;uniqueIndex:idx_accounts_user_email,priority:2" json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	Provider    string     `gorm:"not null" json:"provider"`
	IsPrimary   bool       `gorm:"not null;index" json:"is_primary"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	SyncEnabled bool       `gorm:"not null" json:"sync_enabled"`
	LastSync    *time.Time `json:"last_sync,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount builds an active, sync-enabled mailbox record
func NewAccount(userID, email, displayName string, primary bool, now time.Time) *Account {
	return &Account{
		ID:          uuid.New().String(),
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Provider:    ProviderGoogle,
		IsPrimary:   primary,
		IsActive:    true,
		SyncEnabled: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (a Account) WithSyncEnabled(enabled bool, now time.Time) Account {
	a.SyncEnabled = enabled
	a.UpdatedAt = now
	return a
}

func (a Account) WithActive(active bool, now time.Time) Account {
	a.IsActive = active
	a.UpdatedAt = now
	return a
}

func (a Account) WithLastSync(at time.Time) Account {
	a.LastSync = &at
	a.UpdatedAt = at
	return a
}

func (a Account) WithDisplayName(name string, now time.Time) Account {
	a.DisplayName = name
	a.UpdatedAt = now
	return a
}
