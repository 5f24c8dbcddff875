package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"go.uber.org/zap"
)

// ImportOrchestrator runs the mailbox import after authentication and turns
// every failure, panics included, into a SideEffectReport.
type ImportOrchestrator struct {
	importer core.MailboxImporter
	tokens   *token.Manager
	metrics  core.Recorder
	log      *zap.Logger
	timeout  time.Duration
}

// NewImportOrchestrator creates an orchestrator. A nil importer disables imports.
func NewImportOrchestrator(
	importer core.MailboxImporter,
	tokens *token.Manager,
	m core.Recorder,
	log *zap.Logger,
	timeout time.Duration,
) *ImportOrchestrator {
	return &ImportOrchestrator{
		importer: importer,
		tokens:   tokens,
		metrics:  m,
		log:      log,
		timeout:  timeout,
	}
}

func (o *ImportOrchestrator) Enabled() bool {
	return o != nil && o.importer != nil
}

// Run imports up to limit messages from holder's mailbox using session's
// token, attributing them to owner. It returns nil when imports are disabled.
func (o *ImportOrchestrator) Run(
	ctx context.Context,
	session *models.Session,
	owner, holder string,
	limit int,
) (report *SideEffectReport) {
	if !o.Enabled() {
		return nil
	}

	start := time.Now()
	report = &SideEffectReport{}
	defer func() {
		if r := recover(); r != nil {
			report.Success = false
			report.Error = fmt.Sprintf("import panicked: %v", r)
			o.log.Error("mailbox import panicked",
				zap.String("session_id", session.ID),
				zap.Any("panic", r),
			)
		}
		report.DurationMS = durationMS(time.Since(start))
		result := "success"
		if !report.Success {
			result = "failure"
		}
		o.metrics.RecordImport(result, report.Stored, time.Since(start))
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result, _, err := token.WithReactiveRefresh(ctx, o.tokens, session,
		func(ctx context.Context, tok models.Token) (*core.ImportResult, error) {
			return o.importer.Import(ctx, core.ImportRequest{
				Token:        tok,
				AccountOwner: owner,
				EmailHolder:  holder,
				Limit:        limit,
			})
		},
	)
	if err != nil {
		report.Error = err.Error()
		o.log.Warn("mailbox import failed",
			zap.String("session_id", session.ID),
			zap.String("account_owner", owner),
			zap.Error(err),
		)
		return report
	}

	report.Success = true
	report.Fetched = result.Fetched
	report.Stored = result.Stored
	o.log.Info("mailbox import finished",
		zap.String("session_id", session.ID),
		zap.String("account_owner", owner),
		zap.Int("fetched", result.Fetched),
		zap.Int("stored", result.Stored),
	)
	return report
}
