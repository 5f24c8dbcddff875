package store

import (
	"context"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"gorm.io/gorm/clause"
)

// SaveImportedMessages inserts messages, skipping any already imported for
// the same (account_owner, email_holder, provider_message_id). It returns the
// number of rows written.
func (s *Store) SaveImportedMessages(
	ctx context.Context,
	messages []models.ImportedMessage,
) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(messages, 100)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// CountImportedMessages counts messages a user sees from one mailbox.
func (s *Store) CountImportedMessages(ctx context.Context, owner, holder string) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.ImportedMessage{}).
		Where("account_owner = ? AND email_holder = ?", owner, holder).
		Count(&count).Error
	return count, err
}
