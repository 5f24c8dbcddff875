package store

import (
	"context"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last login time.
func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"last_login": at, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
