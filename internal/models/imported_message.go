package models

import (
	"time"
)

// ImportedMessage is a mailbox message copied during the initial import.
// AccountOwner is the user who sees the message; EmailHolder is the mailbox it came from.
type ImportedMessage struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	AccountOwner      string    `gorm:"not null;uniqueIndex:idx_imported_owner_holder_msg,priority:1" json:"account_owner"`
	EmailHolder       string    `gorm:"not null;uniqueIndex:idx_imported_owner_holder_msg,priority:2" json:"email_holder"`
	ProviderMessageID string    `gorm:"not null;uniqueIndex:idx_imported_owner_holder_msg,priority:3" json:"provider_message_id"`
	ThreadID          string    `json:"thread_id"`
	Subject           string    `json:"subject"`
	Sender            string    `json:"sender"`
	Snippet           string    `gorm:"type:text" json:"snippet"`
	ReceivedAt        time.Time `gorm:"index" json:"received_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName overrides the table name used by ImportedMessage
func (ImportedMessage) TableName() string {
	return "imported_messages"
}
