package core

import (
	"context"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

// SessionStore is the persisted Session collaborator.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	DeactivateSession(ctx context.Context, id string) error
	// DeactivateUserSessions deactivates every active session of userID except
	// exceptID and returns the ids it touched.
	DeactivateUserSessions(ctx context.Context, userID, exceptID string) ([]string, error)
	CountActiveSessions(ctx context.Context, userID string) (int64, error)
}

// LoginWriter persists the outcome of identity resolution atomically: the
// user (created or backfilled) and the new session land together or not at all.
type LoginWriter interface {
	PersistLogin(
		ctx context.Context,
		user *models.User,
		isNew bool,
		session *models.Session,
		deactivateOthers bool,
	) ([]string, error)
}

// UserStore is the subset of user persistence the auth flows call.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// AccountRegistry is the persisted Account collaborator.
type AccountRegistry interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error)
	ListActiveAccounts(ctx context.Context, userID string) ([]models.Account, error)
	GetAccountByUserAndEmail(ctx context.Context, userID, email string) (*models.Account, error)
	GetPrimaryAccount(ctx context.Context, userID string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	// EnsureAccount returns the existing (user_id, email) row or creates account.
	// created is false when a row was already present.
	EnsureAccount(ctx context.Context, account *models.Account) (stored *models.Account, created bool, err error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// MessageSink stores imported mailbox messages. Duplicates are ignored.
type MessageSink interface {
	SaveImportedMessages(ctx context.Context, messages []models.ImportedMessage) (int, error)
}
