package core

import (
	"context"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

// ImportRequest scopes one mailbox import. Every imported record carries both
// AccountOwner (the user who sees it) and EmailHolder (the mailbox it came from).
type ImportRequest struct {
	Token        models.Token
	AccountOwner string
	EmailHolder  string
	Limit        int
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	Fetched  int
	Stored   int
	Duration time.Duration
}

// MailboxImporter copies recent messages out of a provider mailbox.
type MailboxImporter interface {
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
}
