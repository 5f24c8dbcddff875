package services

import (
	"context"
	"errors"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"
)

// ResolutionKind tells the callback which write path to take
type ResolutionKind string

const (
	ResolutionExistingUser ResolutionKind = "existing_user"
	ResolutionNewUser      ResolutionKind = "new_user"
)

// Resolution is the resolver's decision. User is the value to persist:
// a fresh user for ResolutionNewUser, or the existing user with missing
// linkage fields backfilled.
type Resolution struct {
	Kind ResolutionKind
	User *models.User
}

func (r *Resolution) IsNewUser() bool {
	return r.Kind == ResolutionNewUser
}

// UserLookup is the only capability the resolver needs
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// IdentityResolver decides new-user vs existing-user for a profile.
// It never writes; the caller persists the returned user.
type IdentityResolver struct {
	users UserLookup
	now   func() time.Time
}

func NewIdentityResolver(users UserLookup) *IdentityResolver {
	return &IdentityResolver{users: users, now: time.Now}
}

func (r *IdentityResolver) Resolve(
	ctx context.Context,
	profile models.IdentityProfile,
) (*Resolution, error) {
	existing, err := r.users.GetUserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		updated, _ := existing.WithLinkage(profile, r.now())
		return &Resolution{Kind: ResolutionExistingUser, User: &updated}, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return &Resolution{
			Kind: ResolutionNewUser,
			User: models.NewUserFromProfile(profile, r.now()),
		}, nil
	default:
		return nil, err
	}
}
