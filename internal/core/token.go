package core

import (
	"context"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

// TokenRefresher is the slice of IdentityProvider the token lifecycle needs.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Token, error)
}

// TokenLifecycle decides when a session's token must be refreshed and does it.
type TokenLifecycle interface {
	NeedsRefresh(token models.Token) bool
	Refresh(ctx context.Context, session *models.Session) (*models.Session, error)
	EnsureFresh(ctx context.Context, session *models.Session) (*models.Session, error)
	Threshold() time.Duration
}
