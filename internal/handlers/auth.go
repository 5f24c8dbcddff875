package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/middleware"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// cookie session key holding the state of the last issued authorization URL
const sessionOAuthState = "oauth_state"

// AuthorizationIssuer builds consent URLs
type AuthorizationIssuer interface {
	Issue(flow auth.Flow, linkingSessionID string) (*auth.AuthorizationRequest, error)
}

// CallbackProcessor completes consent round trips
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, in services.CallbackInput) (*services.CallbackOutcome, error)
	LinkAccount(ctx context.Context, in services.LinkInput) (*services.LinkResult, error)
}

// SessionOperations are the session endpoints behind /api/auth
type SessionOperations interface {
	Describe(resolved *services.ResolvedSession) *services.MeResult
	Refresh(ctx context.Context, sessionID string) (*services.RefreshResult, error)
	Logout(ctx context.Context, sessionID string) (*services.LogoutResult, error)
}

// Redirects are the frontend pages the browser callback lands on
type Redirects struct {
	SuccessURL string
	LoginURL   string
}

type AuthHandler struct {
	issuer    AuthorizationIssuer
	callbacks CallbackProcessor
	sessions  SessionOperations
	redirects Redirects
	log       *zap.Logger
}

func NewAuthHandler(
	issuer AuthorizationIssuer,
	callbacks CallbackProcessor,
	sessions SessionOperations,
	redirects Redirects,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		issuer:    issuer,
		callbacks: callbacks,
		sessions:  sessions,
		redirects: redirects,
		log:       log,
	}
}

// GoogleLogin starts a login. It answers with the consent URL as JSON, or
// redirects to it when called with ?redirect=1.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	h.startFlow(c, auth.FlowLogin, "")
}

// GoogleAddAccount starts linking another mailbox to the caller. It must run
// behind RequireSession; the caller's session id is carried in the state.
func (h *AuthHandler) GoogleAddAccount(c *gin.Context) {
	session := middleware.CurrentSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "session_not_found",
			"error_description": "Session id required",
		})
		return
	}
	h.startFlow(c, auth.FlowAddAccount, session.ID)
}

func (h *AuthHandler) startFlow(c *gin.Context, flow auth.Flow, linkingSessionID string) {
	req, err := h.issuer.Issue(flow, linkingSessionID)
	if err != nil {
		h.log.Error("failed to issue authorization request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to start authorization",
		})
		return
	}

	cookie := sessions.Default(c)
	cookie.Set(sessionOAuthState, req.State)
	if err := cookie.Save(); err != nil {
		h.log.Warn("failed to save oauth state cookie", zap.Error(err))
	}

	if wantsRedirect(c) {
		c.Redirect(http.StatusTemporaryRedirect, req.URL)
		return
	}
	c.JSON(http.StatusOK, req)
}

func wantsRedirect(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.Query("redirect"))
	return err == nil && v
}

// GoogleCallback is the provider's redirect target. It always answers with
// a redirect to the frontend and never puts tokens in the URL.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	in := services.CallbackInput{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	if !h.consumeState(c, in.State) {
		h.redirectError(c, "invalid_state", "The login request does not match this browser. Please try again.")
		return
	}

	outcome, err := h.callbacks.HandleCallback(c.Request.Context(), in)
	if err != nil {
		h.redirectError(c, services.CodeOf(err), services.MessageOf(err))
		return
	}

	q := url.Values{}
	switch {
	case outcome.Login != nil:
		result := outcome.Login
		q.Set("status", "success")
		q.Set("email", result.User.Email)
		q.Set("name", result.User.Name)
		q.Set("user_id", result.User.ID)
		q.Set("session_id", result.SessionID)
		q.Set("is_new_user", strconv.FormatBool(result.IsNewUser))
		if result.EmailImport != nil && !result.EmailImport.Success {
			q.Set("email_import", "failed")
		}
	case outcome.Link != nil:
		result := outcome.Link
		status := "account_exists"
		if result.AccountAdded {
			status = "account_added"
		}
		q.Set("status", status)
		q.Set("email", result.Email)
		q.Set("session_id", result.SessionID)
		if result.Account != nil {
			q.Set("account_id", result.Account.ID)
		}
	}
	c.Redirect(http.StatusFound, withQuery(h.redirects.SuccessURL, q))
}

// consumeState compares state with the one recorded when the flow started
// and clears it. Callbacks from a browser without the cookie are accepted;
// the state format is still checked by the service.
func (h *AuthHandler) consumeState(c *gin.Context, state string) bool {
	cookie := sessions.Default(c)
	saved, ok := cookie.Get(sessionOAuthState).(string)
	if !ok || saved == "" {
		return true
	}
	cookie.Delete(sessionOAuthState)
	if err := cookie.Save(); err != nil {
		h.log.Warn("failed to clear oauth state cookie", zap.Error(err))
	}
	return saved == state
}

func (h *AuthHandler) redirectError(c *gin.Context, code, message string) {
	q := url.Values{}
	q.Set("error", code)
	q.Set("message", message)
	c.Redirect(http.StatusFound, withQuery(h.redirects.LoginURL, q))
}

// withQuery appends q to base, keeping any query base already has
func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

type addAccountRequest struct {
	Code             string `json:"code"`
	State            string `json:"state"              binding:"required"`
	CurrentUserEmail string `json:"current_user_email"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AddAccount completes the linking flow for API clients that receive the
// provider callback themselves. It must run behind RequireSession; the
// mailbox is linked to the session's user.
func (h *AuthHandler) AddAccount(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "session_not_found",
			"error_description": "Session id required",
		})
		return
	}

	var req addAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "state is required")
		return
	}
	if req.Code == "" && req.Error == "" {
		badRequest(c, "code is required")
		return
	}
	if req.CurrentUserEmail != "" {
		email, err := models.NormalizeEmail(req.CurrentUserEmail)
		if err != nil || email != user.Email {
			c.JSON(http.StatusForbidden, gin.H{
				"error":             "access_denied",
				"error_description": "current_user_email does not match the session",
			})
			return
		}
	}

	result, err := h.callbacks.LinkAccount(c.Request.Context(), services.LinkInput{
		CallbackInput: services.CallbackInput{
			Code:             req.Code,
			State:            req.State,
			Error:            req.Error,
			ErrorDescription: req.ErrorDescription,
		},
		CurrentUserEmail: user.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type sessionRequest struct {
	SessionID string `json:"session_id" form:"session_id"`
}

// sessionIDFromBody reads session_id from the JSON body, falling back to the
// bearer header and query parameter.
func sessionIDFromBody(c *gin.Context) string {
	var req sessionRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.SessionID != "" {
		return req.SessionID
	}
	return middleware.SessionIDFromRequest(c)
}

// Refresh mints a new access token for a session
func (h *AuthHandler) Refresh(c *gin.Context) {
	id := sessionIDFromBody(c)
	if id == "" {
		badRequest(c, "session_id is required")
		return
	}
	result, err := h.sessions.Refresh(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout revokes the provider grant and ends the session
func (h *AuthHandler) Logout(c *gin.Context) {
	id := sessionIDFromBody(c)
	if id == "" {
		badRequest(c, "session_id is required")
		return
	}
	result, err := h.sessions.Logout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me describes the caller. It must run behind RequireSession.
func (h *AuthHandler) Me(c *gin.Context) {
	session := middleware.CurrentSession(c)
	user := middleware.CurrentUser(c)
	if session == nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "session_not_found",
			"error_description": "Session id required",
		})
		return
	}
	c.JSON(http.StatusOK, h.sessions.Describe(&services.ResolvedSession{Session: session, User: user}))
}
