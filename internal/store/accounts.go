package store

import (
	"context"
	"errors"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"gorm.io/gorm"
)

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var account models.Account
	if err := db.Where("id = ?", id).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// ListAccountsByUser returns the primary account first, then the rest by age.
func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var accounts []models.Account
	err := db.Where("user_id = ?", userID).
		Order("is_primary DESC").
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) ListActiveAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var accounts []models.Account
	err := db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("is_primary DESC").
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) GetAccountByUserAndEmail(
	ctx context.Context,
	userID, email string,
) (*models.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var account models.Account
	if err := db.Where("user_id = ? AND email = ?", userID, email).
		First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// GetPrimaryAccount returns the oldest primary account of a user.
func (s *Store) GetPrimaryAccount(ctx context.Context, userID string) (*models.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var account models.Account
	if err := db.Where("user_id = ? AND is_primary = ?", userID, true).
		Order("created_at ASC").
		First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// EnsureAccount creates account unless a row for its (user_id, email) pair
// exists. A concurrent creator losing the unique-index race re-reads the
// winner's row, so the call is idempotent.
func (s *Store) EnsureAccount(
	ctx context.Context,
	account *models.Account,
) (*models.Account, bool, error) {
	existing, err := s.GetAccountByUserAndEmail(ctx, account.UserID, account.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, false, err
	}

	if err := s.CreateAccount(ctx, account); err != nil {
		if !errors.Is(err, ErrDuplicateAccount) {
			return nil, false, err
		}
		existing, err := s.GetAccountByUserAndEmail(ctx, account.UserID, account.Email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return account, true, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *models.Account) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Model(account).Select("*").Omit("created_at").Updates(account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAccount
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Where("id = ?", id).Delete(&models.Account{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CountAccountsByKind counts primary or secondary accounts for metrics.
func (s *Store) CountAccountsByKind(ctx context.Context, primary bool) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Account{}).Where("is_primary = ?", primary).Count(&count).Error
	return count, err
}
