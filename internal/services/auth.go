package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/logger"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"go.uber.org/zap"
)

// CallbackInput is what the provider sends back to the redirect URI
type CallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// LinkInput is a callback for the add-another-mailbox flow.
// CurrentUserEmail identifies the already-authenticated user.
type LinkInput struct {
	CallbackInput
	CurrentUserEmail string
}

// CallbackOutcome is the result of a callback routed by its state:
// exactly one of Login or Link is set.
type CallbackOutcome struct {
	Flow  auth.Flow
	Login *AuthResult
	Link  *LinkResult
}

// AuthLimits are the mailbox import sizes per flow
type AuthLimits struct {
	ImportFirstLogin int
	ImportLink       int
}

// AuthService turns provider callbacks into sessions. Everything up to and
// including session persistence is fatal on failure and leaves nothing
// written; everything after it is reported as a warning.
type AuthService struct {
	provider core.IdentityProvider
	resolver *IdentityResolver
	logins   core.LoginWriter
	users    core.UserStore
	sessions core.SessionStore
	accounts *AccountService
	imports  *ImportOrchestrator
	limits   AuthLimits
	metrics  core.Recorder
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(
	provider core.IdentityProvider,
	resolver *IdentityResolver,
	logins core.LoginWriter,
	users core.UserStore,
	sessions core.SessionStore,
	accounts *AccountService,
	imports *ImportOrchestrator,
	limits AuthLimits,
	m core.Recorder,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		resolver: resolver,
		logins:   logins,
		users:    users,
		sessions: sessions,
		accounts: accounts,
		imports:  imports,
		limits:   limits,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// HandleCallback routes a browser callback by the flow encoded in its state.
// An add-account state is linked to the user owning the session it names.
func (s *AuthService) HandleCallback(ctx context.Context, in CallbackInput) (*CallbackOutcome, error) {
	if in.Error != "" {
		s.metrics.RecordCallback(string(StageReceived), "failure", 0)
		return nil, s.providerError(in)
	}
	state, err := auth.ParseState(in.State)
	if err != nil {
		s.metrics.RecordCallback(string(StageReceived), "failure", 0)
		return nil, NewAuthError(ErrInvalidState, "the state parameter is malformed", err)
	}

	if state.Flow != auth.FlowAddAccount {
		result, err := s.ProcessCallback(ctx, in)
		if err != nil {
			return nil, err
		}
		return &CallbackOutcome{Flow: auth.FlowLogin, Login: result}, nil
	}

	rejectLink := func(err error) (*CallbackOutcome, error) {
		s.metrics.RecordCallback(string(StageReceived), "failure", 0)
		s.metrics.RecordAccountLink("failure")
		s.log.Warn("account link failed", zap.Error(err))
		return nil, err
	}
	linking, err := s.sessions.GetSession(ctx, state.LinkingSessionID)
	if err != nil || !linking.IsValidAt(s.now()) || linking.UserID == nil {
		return rejectLink(NewAuthError(ErrSessionInvalid, "the session that started linking is no longer valid", err))
	}
	owner, err := s.users.GetUserByID(ctx, *linking.UserID)
	if err != nil {
		return rejectLink(NewAuthError(ErrSessionInvalid, "the session that started linking has no user", err))
	}
	result, err := s.LinkAccount(ctx, LinkInput{CallbackInput: in, CurrentUserEmail: owner.Email})
	if err != nil {
		return nil, err
	}
	return &CallbackOutcome{Flow: auth.FlowAddAccount, Link: result}, nil
}

// ProcessCallback runs the login state machine:
// received, code exchanged, profile fetched, identity resolved, session
// persisted, side effects executed, complete.
func (s *AuthService) ProcessCallback(ctx context.Context, in CallbackInput) (*AuthResult, error) {
	start := time.Now()
	stage := StageReceived
	fail := func(err error) (*AuthResult, error) {
		s.metrics.RecordCallback(string(stage), "failure", time.Since(start))
		s.log.Warn("login callback failed", zap.String("stage", string(stage)), zap.Error(err))
		return nil, err
	}

	if in.Error != "" {
		return fail(s.providerError(in))
	}
	if _, err := auth.ParseState(in.State); err != nil {
		return fail(NewAuthError(ErrInvalidState, "the state parameter is malformed", err))
	}

	tok, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		return fail(NewAuthError(ErrTokenExchange, "failed to exchange authorization code", err))
	}
	stage = StageCodeExchanged

	profile, err := s.provider.FetchProfile(ctx, tok)
	if err != nil {
		return fail(NewAuthError(ErrProfileFetch, "failed to fetch user profile", err))
	}
	stage = StageProfileFetched

	resolution, session, err := s.persistLogin(ctx, tok, profile, in.State)
	if err != nil {
		return fail(err)
	}
	user := resolution.User
	stage = StageSessionPersisted
	s.log.Info("login session created",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Bool("is_new_user", resolution.IsNewUser()),
	)

	result := &AuthResult{
		User:        user,
		SessionID:   session.ID,
		AccessToken: session.Token.AccessToken,
		ExpiresIn:   int64(session.Token.ExpiresInAt(s.now()) / time.Second),
		IsNewUser:   resolution.IsNewUser(),
	}

	// Side effects below never fail the login
	if resolution.IsNewUser() {
		result.EmailImport = s.imports.Run(ctx, session, user.ID, user.Email, s.limits.ImportFirstLogin)
		if result.EmailImport != nil && !result.EmailImport.Success {
			result.Warnings = append(result.Warnings, "initial email import failed: "+result.EmailImport.Error)
		}
	}
	stage = StageSideEffectsExecuted

	if _, _, err := s.accounts.EnsurePrimary(ctx, user.ID, user.Email, user.Name); err != nil {
		s.log.Warn("failed to ensure primary account", zap.String("user_id", user.ID), zap.Error(err))
		result.Warnings = append(result.Warnings, "primary account could not be recorded; it will be retried on next login")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	stage = StageComplete
	result.Stage = stage
	outcome := "success"
	if result.Degraded() {
		outcome = "degraded"
	}
	s.metrics.RecordLogin(result.IsNewUser)
	s.metrics.RecordCallback(string(stage), outcome, time.Since(start))
	return result, nil
}

// persistLogin resolves the identity and stores the user and session together.
// A concurrent first login for the same email makes the insert collide; the
// loser resolves again and continues as an existing user.
func (s *AuthService) persistLogin(
	ctx context.Context,
	tok models.Token,
	profile models.IdentityProfile,
	state string,
) (*Resolution, *models.Session, error) {
	for attempt := 0; ; attempt++ {
		resolution, err := s.resolver.Resolve(ctx, profile)
		if err != nil {
			return nil, nil, NewAuthError(ErrIdentityPersistence, "failed to look up user", err)
		}

		session, err := models.NewSession(&resolution.User.ID, tok, profile, state, s.now())
		if err != nil {
			return nil, nil, NewAuthError(ErrIdentityPersistence, "failed to create session", err)
		}

		isNew := resolution.IsNewUser()
		deactivated, err := s.logins.PersistLogin(ctx, resolution.User, isNew, session, !isNew)
		if errors.Is(err, store.ErrDuplicateUser) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, nil, NewAuthError(ErrIdentityPersistence, "failed to persist session", err)
		}
		if len(deactivated) > 0 {
			s.log.Info("deactivated previous sessions",
				zap.String("user_id", resolution.User.ID),
				zap.Int("count", len(deactivated)),
			)
		}
		return resolution, session, nil
	}
}

// LinkAccount attaches the mailbox behind in.Code to the user identified by
// in.CurrentUserEmail. Linking an already linked mailbox is a no-op.
func (s *AuthService) LinkAccount(ctx context.Context, in LinkInput) (*LinkResult, error) {
	fail := func(err error) (*LinkResult, error) {
		s.metrics.RecordAccountLink("failure")
		s.log.Warn("account link failed", zap.Error(err))
		return nil, err
	}

	if in.Error != "" {
		return fail(s.providerError(in.CallbackInput))
	}
	state, err := auth.ParseState(in.State)
	if err != nil {
		return fail(NewAuthError(ErrInvalidState, "the state parameter is malformed", err))
	}
	if state.Flow != auth.FlowAddAccount {
		return fail(NewAuthError(ErrInvalidState, "the state was not issued for linking a mailbox", nil))
	}

	email, err := models.NormalizeEmail(in.CurrentUserEmail)
	if err != nil {
		return fail(NewAuthError(ErrInvalidRequest, "current_user_email is invalid", err))
	}
	owner, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fail(NewAuthError(ErrSessionInvalid, "current user is not registered", err))
		}
		return fail(err)
	}
	if err := s.checkLinkingSession(ctx, state, owner.ID); err != nil {
		return fail(err)
	}

	tok, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		return fail(NewAuthError(ErrTokenExchange, "failed to exchange authorization code", err))
	}
	profile, err := s.provider.FetchProfile(ctx, tok)
	if err != nil {
		return fail(NewAuthError(ErrProfileFetch, "failed to fetch mailbox profile", err))
	}

	// The session only holds the new mailbox's token; it is bound to the
	// existing user right after creation.
	session, err := models.NewSession(nil, tok, profile, in.State, s.now())
	if err != nil {
		return fail(NewAuthError(ErrIdentityPersistence, "failed to create session", err))
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return fail(NewAuthError(ErrIdentityPersistence, "failed to persist session", err))
	}
	bound, err := session.BoundTo(owner.ID, s.now())
	if err != nil {
		return fail(NewAuthError(ErrIdentityPersistence, "failed to bind session", err))
	}
	if err := s.sessions.UpdateSession(ctx, &bound); err != nil {
		return fail(NewAuthError(ErrIdentityPersistence, "failed to bind session", err))
	}

	result := &LinkResult{
		Success:   true,
		SessionID: bound.ID,
		Email:     profile.Email,
	}

	var account *models.Account
	var created bool
	if profile.Email == owner.Email {
		account, created, err = s.accounts.EnsurePrimary(ctx, owner.ID, profile.Email, profile.Name)
	} else {
		account, created, err = s.accounts.CreateSecondary(ctx, owner.ID, profile.Email, profile.Name)
	}
	if err != nil {
		return fail(NewAuthError(ErrIdentityPersistence, "failed to record linked account", err))
	}
	result.Account = account
	result.AccountAdded = created
	result.AccountExists = !created

	if !created {
		result.Message = fmt.Sprintf("%s is already linked", profile.Email)
		s.metrics.RecordAccountLink("exists")
		return result, nil
	}

	result.Message = fmt.Sprintf("%s linked successfully", profile.Email)
	result.EmailImport = s.imports.Run(ctx, &bound, owner.ID, profile.Email, s.limits.ImportLink)
	if result.EmailImport != nil && !result.EmailImport.Success {
		result.Warnings = append(result.Warnings, "email import failed: "+result.EmailImport.Error)
	}

	s.log.Info("mailbox linked",
		zap.String("user_id", owner.ID),
		zap.String("email", logger.MaskEmail(profile.Email)),
	)
	s.metrics.RecordAccountLink("added")
	return result, nil
}

// checkLinkingSession verifies that the session named in the state is valid
// and belongs to ownerID.
func (s *AuthService) checkLinkingSession(ctx context.Context, state auth.State, ownerID string) error {
	if state.LinkingSessionID == "" {
		return NewAuthError(ErrInvalidState, "the state does not name a linking session", nil)
	}
	linking, err := s.sessions.GetSession(ctx, state.LinkingSessionID)
	if err != nil || !linking.IsValidAt(s.now()) || linking.OwnerID() != ownerID {
		return NewAuthError(ErrInvalidState, "the state does not belong to the current user", err)
	}
	return nil
}

// EnsurePrimaryAccount is the explicit reconciliation entry point
func (s *AuthService) EnsurePrimaryAccount(ctx context.Context, userID string) (*models.Account, bool, error) {
	return s.accounts.Reconcile(ctx, userID)
}

func (s *AuthService) providerError(in CallbackInput) error {
	msg := in.Error
	if in.ErrorDescription != "" {
		msg = in.Error + ": " + in.ErrorDescription
	}
	return NewAuthError(ErrOAuthProvider, msg, nil)
}
