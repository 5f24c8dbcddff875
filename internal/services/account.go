package services

import (
	"context"
	"errors"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"go.uber.org/zap"
)

// MessageCounter reports how many imported messages an account holds
type MessageCounter interface {
	CountImportedMessages(ctx context.Context, owner, holder string) (int64, error)
}

// AccountDetail is one account plus its imported message count
type AccountDetail struct {
	models.Account
	ImportedMessages int64 `json:"imported_messages"`
}

// AccountService manages the mailboxes linked to a user. Every operation is
// scoped to userID; an account of another user is reported as not found.
type AccountService struct {
	accounts core.AccountRegistry
	users    core.UserStore
	messages MessageCounter
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(
	accounts core.AccountRegistry,
	users core.UserStore,
	messages MessageCounter,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		users:    users,
		messages: messages,
		log:      log,
		now:      time.Now,
	}
}

func (s *AccountService) List(ctx context.Context, userID string) ([]models.Account, error) {
	return s.accounts.ListAccountsByUser(ctx, userID)
}

func (s *AccountService) ListActive(ctx context.Context, userID string) ([]models.Account, error) {
	return s.accounts.ListActiveAccounts(ctx, userID)
}

// Get returns an account owned by userID
func (s *AccountService) Get(ctx context.Context, userID, accountID string) (*AccountDetail, error) {
	account, err := s.owned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	detail := &AccountDetail{Account: *account}
	if s.messages != nil {
		n, err := s.messages.CountImportedMessages(ctx, userID, account.Email)
		if err != nil {
			s.log.Warn("failed to count imported messages",
				zap.String("account_id", account.ID), zap.Error(err))
		}
		detail.ImportedMessages = n
	}
	return detail, nil
}

func (s *AccountService) GetByEmail(ctx context.Context, userID, email string) (*models.Account, error) {
	normalized, err := models.NormalizeEmail(email)
	if err != nil {
		return nil, NewAuthError(ErrInvalidRequest, "invalid email address", err)
	}
	account, err := s.accounts.GetAccountByUserAndEmail(ctx, userID, normalized)
	if err != nil {
		return nil, accountLookupError(err)
	}
	return account, nil
}

func (s *AccountService) Primary(ctx context.Context, userID string) (*models.Account, error) {
	account, err := s.accounts.GetPrimaryAccount(ctx, userID)
	if err != nil {
		return nil, accountLookupError(err)
	}
	return account, nil
}

// EnsurePrimary creates the primary account for (userID, email) unless a row
// for that pair already exists, in which case it is returned untouched.
func (s *AccountService) EnsurePrimary(
	ctx context.Context,
	userID, email, displayName string,
) (*models.Account, bool, error) {
	return s.accounts.EnsureAccount(ctx, models.NewAccount(userID, email, displayName, true, s.now()))
}

// CreateSecondary attaches another mailbox. A pair that already exists is
// returned with created=false.
func (s *AccountService) CreateSecondary(
	ctx context.Context,
	userID, email, displayName string,
) (*models.Account, bool, error) {
	return s.accounts.EnsureAccount(ctx, models.NewAccount(userID, email, displayName, false, s.now()))
}

// Reconcile re-runs the idempotent primary-account step for userID
func (s *AccountService) Reconcile(ctx context.Context, userID string) (*models.Account, bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, false, NewAuthError(ErrSessionInvalid, "user no longer exists", err)
		}
		return nil, false, err
	}
	account, created, err := s.EnsurePrimary(ctx, user.ID, user.Email, user.Name)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("primary account reconciled", zap.String("user_id", user.ID))
	}
	return account, created, nil
}

func (s *AccountService) SetSyncEnabled(
	ctx context.Context,
	userID, accountID string,
	enabled bool,
) (*models.Account, error) {
	return s.update(ctx, userID, accountID, func(a models.Account) (models.Account, error) {
		return a.WithSyncEnabled(enabled, s.now()), nil
	})
}

func (s *AccountService) SetActive(
	ctx context.Context,
	userID, accountID string,
	active bool,
) (*models.Account, error) {
	return s.update(ctx, userID, accountID, func(a models.Account) (models.Account, error) {
		if a.IsPrimary && !active {
			return a, NewAuthError(ErrInvalidRequest, "the primary account cannot be deactivated", nil)
		}
		return a.WithActive(active, s.now()), nil
	})
}

func (s *AccountService) Rename(
	ctx context.Context,
	userID, accountID, displayName string,
) (*models.Account, error) {
	return s.update(ctx, userID, accountID, func(a models.Account) (models.Account, error) {
		return a.WithDisplayName(displayName, s.now()), nil
	})
}

// Delete removes a secondary account. The primary account cannot be deleted.
func (s *AccountService) Delete(ctx context.Context, userID, accountID string) error {
	account, err := s.owned(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if account.IsPrimary {
		return NewAuthError(ErrInvalidRequest, "the primary account cannot be deleted", nil)
	}
	if err := s.accounts.DeleteAccount(ctx, account.ID); err != nil {
		return accountLookupError(err)
	}
	return nil
}

func (s *AccountService) update(
	ctx context.Context,
	userID, accountID string,
	apply func(models.Account) (models.Account, error),
) (*models.Account, error) {
	account, err := s.owned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	updated, err := apply(*account)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateAccount(ctx, &updated); err != nil {
		return nil, accountLookupError(err)
	}
	return &updated, nil
}

func (s *AccountService) owned(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, accountLookupError(err)
	}
	if account.UserID != userID {
		return nil, NewAuthError(ErrAccountNotFound, "account not found", nil)
	}
	return account, nil
}

func accountLookupError(err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return NewAuthError(ErrAccountNotFound, "account not found", err)
	}
	return err
}
