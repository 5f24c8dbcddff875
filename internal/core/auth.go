package core

import (
	"context"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

// IdentityProvider is the single OAuth2 identity provider shape the auth flows
// depend on. GoogleProvider is the production implementation.
type IdentityProvider interface {
	Name() string

	// AuthCodeURL builds the consent URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades a single-use authorization code for a Token.
	Exchange(ctx context.Context, code string) (models.Token, error)

	// FetchProfile reads the user record visible to the access token.
	FetchProfile(ctx context.Context, token models.Token) (models.IdentityProfile, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (models.Token, error)

	// Revoke invalidates an access or refresh token at the provider.
	Revoke(ctx context.Context, token string) error
}
