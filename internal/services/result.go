package services

import (
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
)

// Stage is a step of the callback state machine
type Stage string

const (
	StageReceived            Stage = "received"
	StageCodeExchanged       Stage = "code_exchanged"
	StageProfileFetched      Stage = "profile_fetched"
	StageIdentityResolved    Stage = "identity_resolved"
	StageSessionPersisted    Stage = "session_persisted"
	StageSideEffectsExecuted Stage = "side_effects_executed"
	StageComplete            Stage = "complete"
)

// SideEffectReport describes the outcome of a best-effort mailbox import.
// A failed import is carried here and never returned as an error.
type SideEffectReport struct {
	Success    bool   `json:"success"`
	Fetched    int    `json:"fetched"`
	Stored     int    `json:"stored"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// AuthResult is the outcome of a login callback that reached SessionPersisted.
// Warnings list soft failures; the login itself succeeded regardless.
type AuthResult struct {
	User        *models.User      `json:"user"`
	SessionID   string            `json:"session_id"`
	AccessToken string            `json:"-"`
	ExpiresIn   int64             `json:"expires_in"`
	IsNewUser   bool              `json:"is_new_user"`
	EmailImport *SideEffectReport `json:"email_import,omitempty"`
	Stage       Stage             `json:"stage"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Degraded reports whether any soft failure happened after the session was stored
func (r *AuthResult) Degraded() bool {
	return len(r.Warnings) > 0
}

// LinkResult is the outcome of attaching another mailbox to a user
type LinkResult struct {
	Success       bool              `json:"success"`
	AccountAdded  bool              `json:"account_added"`
	AccountExists bool              `json:"account_exists"`
	Account       *models.Account   `json:"account"`
	SessionID     string            `json:"session_id"`
	Email         string            `json:"email"`
	Message       string            `json:"message"`
	EmailImport   *SideEffectReport `json:"email_import,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// RefreshResult is returned by an explicit token refresh
type RefreshResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// LogoutResult always reports success once the local session is deactivated.
// TokenRevoked and Warning describe the remote revocation.
type LogoutResult struct {
	Success      bool   `json:"success"`
	TokenRevoked bool   `json:"token_revoked"`
	Message      string `json:"message"`
	Warning      string `json:"warning,omitempty"`
}

// SessionInfo is the session summary returned by /me
type SessionInfo struct {
	Provider       string `json:"provider"`
	SessionActive  bool   `json:"session_active"`
	TokenExpiresIn int64  `json:"token_expires_in"`
}

// MeResult is the resolved caller
type MeResult struct {
	User        *models.User `json:"user"`
	SessionInfo SessionInfo  `json:"session_info"`
}

// ResolvedSession pairs a valid session with its owner
type ResolvedSession struct {
	Session *models.Session
	User    *models.User
}

func durationMS(d time.Duration) int64 {
	return d.Milliseconds()
}
