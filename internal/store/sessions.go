package store

import (
	"context"
	"errors"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Create(session).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var session models.Session
	if err := db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// UpdateSession overwrites every mutable column of an existing session.
// Concurrent writers are not coordinated; the last write wins.
func (s *Store) UpdateSession(ctx context.Context, session *models.Session) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Model(session).Select("*").Omit("created_at").Updates(session)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeactivateUserSessions(ctx context.Context, userID, exceptID string) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	return deactivateUserSessions(db, userID, exceptID, time.Now())
}

func deactivateUserSessions(db *gorm.DB, userID, exceptID string, now time.Time) ([]string, error) {
	var ids []string
	if err := db.Model(&models.Session{}).
		Where("user_id = ? AND is_active = ? AND id <> ?", userID, true, exceptID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := db.Model(&models.Session{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_active": false, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) CountActiveSessions(ctx context.Context, userID string) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

// CountAllActiveSessions counts active sessions across all users for metrics.
func (s *Store) CountAllActiveSessions(ctx context.Context) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Session{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// linkageColumns are the user columns a login may backfill. Role and
// is_active are owned by administrators and never written here.
func linkageColumns(user *models.User) map[string]any {
	return map[string]any{
		"google_id":  user.GoogleID,
		"picture":    user.Picture,
		"provider":   user.Provider,
		"name":       user.Name,
		"updated_at": time.Now(),
	}
}

// PersistLogin writes the resolved user and the new session in one
// transaction. For a returning user it can also deactivate every other
// active session, returning their ids.
func (s *Store) PersistLogin(
	ctx context.Context,
	user *models.User,
	isNew bool,
	session *models.Session,
	deactivateOthers bool,
) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var deactivated []string
	err := db.Transaction(func(tx *gorm.DB) error {
		if isNew {
			if err := tx.Create(user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateUser
				}
				return err
			}
		} else {
			result := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(linkageColumns(user))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrRecordNotFound
			}
		}

		if err := tx.Create(session).Error; err != nil {
			return err
		}

		if deactivateOthers {
			ids, err := deactivateUserSessions(tx, user.ID, session.ID, session.CreatedAt)
			if err != nil {
				return err
			}
			deactivated = ids
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deactivated, nil
}
