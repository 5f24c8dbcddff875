package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	ContextSession = "session"
	ContextUser    = "user"

	// SessionIDQuery is the query fallback for clients that cannot set headers
	SessionIDQuery = "session_id"
)

// SessionResolver turns a session id into a valid session and its user
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*services.ResolvedSession, error)
}

// RequireSession authenticates the request by its session id, taken from
// "Authorization: Bearer <id>" or the session_id query parameter.
// The resolved session and user are stored on the gin context.
func RequireSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := SessionIDFromRequest(c)
		if sessionID == "" {
			c.Header("WWW-Authenticate", `Bearer realm="Session"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "session_not_found",
				"error_description": "Session id required",
			})
			return
		}

		resolved, err := resolver.Resolve(c.Request.Context(), sessionID)
		if err != nil {
			AbortWithAuthError(c, err)
			return
		}

		c.Set(ContextSession, resolved.Session)
		c.Set(ContextUser, resolved.User)
		c.Next()
	}
}

// SessionIDFromRequest returns the bearer token, falling back to the
// session_id query parameter.
func SessionIDFromRequest(c *gin.Context) string {
	if id := bearerToken(c.GetHeader("Authorization")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query(SessionIDQuery))
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// AbortWithAuthError maps session failures to 401 and anything else to 500
func AbortWithAuthError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var authErr *services.AuthError
	if errors.As(err, &authErr) {
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":             services.CodeOf(err),
		"error_description": services.MessageOf(err),
	})
}

// CurrentSession returns the session stored by RequireSession
func CurrentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(ContextSession); ok {
		if s, ok := v.(*models.Session); ok {
			return s
		}
	}
	return nil
}

// CurrentUser returns the user stored by RequireSession
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}
