package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver resolves "good" and fails every other id with err
type stubResolver struct {
	err  error
	seen string
}

func (s *stubResolver) Resolve(_ context.Context, id string) (*services.ResolvedSession, error) {
	s.seen = id
	if id != "good" {
		return nil, s.err
	}
	userID := "user-1"
	return &services.ResolvedSession{
		Session: &models.Session{ID: id, UserID: &userID, IsActive: true},
		User:    &models.User{ID: userID, Email: "alice@example.com"},
	}, nil
}

func setupSessionRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireSession(resolver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"session_id": CurrentSession(c).ID,
			"email":      CurrentUser(c).Email,
		})
	})
	return r
}

func doGet(t *testing.T, r http.Handler, target, authorization string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRequireSession_BearerHeader(t *testing.T) {
	resolver := &stubResolver{}
	w, body := doGet(t, setupSessionRouter(resolver), "/me", "Bearer good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", body["session_id"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestRequireSession_QueryFallback(t *testing.T) {
	resolver := &stubResolver{}
	w, body := doGet(t, setupSessionRouter(resolver), "/me?session_id=good", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", body["session_id"])
}

func TestRequireSession_HeaderWinsOverQuery(t *testing.T) {
	resolver := &stubResolver{err: errors.New("unused")}
	w, _ := doGet(t, setupSessionRouter(resolver), "/me?session_id=bad", "Bearer good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", resolver.seen)
}

func TestRequireSession_Missing(t *testing.T) {
	resolver := &stubResolver{}
	w, body := doGet(t, setupSessionRouter(resolver), "/me", "Basic abc")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "session_not_found", body["error"])
	assert.Empty(t, resolver.seen, "resolver is not called without an id")
}

func TestRequireSession_ResolveFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        services.NewAuthError(services.ErrSessionNotFound, "session not found", nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "session_not_found",
		},
		{
			name:       "refresh token missing",
			err:        services.NewAuthError(services.ErrRefreshTokenMissing, "sign in again", nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "refresh_token_missing",
		},
		{
			name:       "unexpected",
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &stubResolver{err: tt.err}
			w, body := doGet(t, setupSessionRouter(resolver), "/me", "Bearer bad")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.NotContains(t, body["error_description"], "database is locked")
		})
	}
}

func TestCurrentUser_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, CurrentUser(c))
	assert.Nil(t, CurrentSession(c))
}
