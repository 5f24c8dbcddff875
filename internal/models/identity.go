package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ProviderGoogle is the only identity provider currently supported
const ProviderGoogle = "google"

var (
	ErrMissingProviderID = errors.New("identity profile has no provider id")
	ErrInvalidEmail      = errors.New("identity profile has an invalid email address")
)

// IdentityProfile is the provider's user record, captured once per profile fetch.
type IdentityProfile struct {
	ProviderID string `gorm:"not null" json:"provider_id"`
	Email      string `gorm:"not null" json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
	Locale     string `json:"locale,omitempty"`
	Provider   string `gorm:"not null" json:"provider"`
}

// NewIdentityProfile validates and normalizes a provider profile.
func NewIdentityProfile(providerID, email, name, picture, locale string) (IdentityProfile, error) {
	if strings.TrimSpace(providerID) == "" {
		return IdentityProfile{}, ErrMissingProviderID
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return IdentityProfile{}, err
	}
	if name == "" {
		name = normalized[:strings.Index(normalized, "@")]
	}
	return IdentityProfile{
		ProviderID: providerID,
		Email:      normalized,
		Name:       name,
		Picture:    picture,
		Locale:     locale,
		Provider:   ProviderGoogle,
	}, nil
}

// NormalizeEmail validates a bare address and lower-cases it.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return strings.ToLower(addr.Address), nil
}
