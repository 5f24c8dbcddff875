package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/cache"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServerAddr:            ":0",
		BaseURL:               "http://localhost:8080",
		Environment:           "development",
		DatabaseDriver:        config.DatabaseDriverSQLite,
		DatabaseDSN:           filepath.Join(t.TempDir(), "test.db"),
		DatabaseLogLevel:      "silent",
		GoogleClientID:        "client-id",
		GoogleClientSecret:    "client-secret",
		GoogleRedirectURL:     "http://localhost:8080/api/auth/google/callback",
		GoogleScopes:          config.DefaultGoogleScopes,
		FrontendSuccessURL:    "http://localhost:3000/auth/success",
		FrontendLoginURL:      "http://localhost:3000/login",
		OAuthTimeout:          5 * time.Second,
		StoreTimeout:          5 * time.Second,
		ProviderMaxRetries:    1,
		ProviderRetryDelay:    10 * time.Millisecond,
		ProviderMaxRetryDelay: 50 * time.Millisecond,
		TokenRefreshThreshold: 5 * time.Minute,
		ImportLimitFirstLogin: 50,
		ImportLimitLink:       10,
		ImportTimeout:         5 * time.Second,
		SessionSecret:         defaultSessionSecret,
		SessionMaxAge:         600,
		SessionCacheType:      config.CacheTypeMemory,
		SessionCacheTTL:       time.Minute,
		MetricsCacheType:      config.CacheTypeMemory,
		DBInitTimeout:         5 * time.Second,
		CacheInitTimeout:      5 * time.Second,
		ServerShutdownTimeout: time.Second,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.closeInfrastructure)
	return app
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateAllConfiguration_GeneratesDevelopmentSecret(t *testing.T) {
	cfg := testConfig(t)
	core, logs := observer.New(zapcore.WarnLevel)

	require.NoError(t, validateAllConfiguration(cfg, zap.New(core)))
	assert.NotEqual(t, defaultSessionSecret, cfg.SessionSecret)
	assert.GreaterOrEqual(t, len(cfg.SessionSecret), 32)
	assert.Equal(t, 1, logs.Len())
}

func TestValidateAllConfiguration_KeepsExplicitSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionSecret = "an-explicit-secret"

	require.NoError(t, validateAllConfiguration(cfg, zap.NewNop()))
	assert.Equal(t, "an-explicit-secret", cfg.SessionSecret)
}

func TestValidateAllConfiguration_RejectsPlaceholderInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Environment = "production"

	err := validateAllConfiguration(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestValidateAllConfiguration_WrapsConfigErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleClientID = ""

	err := validateAllConfiguration(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNew_InvalidConfigOpensNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"

	app, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestNew_WiresCaches(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	_, ok := app.SessionCache.(*cache.MemoryCache[models.Session])
	assert.True(t, ok)
	assert.NotNil(t, app.SessionCacheCloser)
	// gauges are only cached while metrics are on
	assert.Nil(t, app.MetricsCache)
	assert.False(t, app.Services.imports.Enabled())
}

func TestNew_SessionCacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionCacheTTL = 0

	app := newTestApp(t, cfg)
	assert.Nil(t, app.SessionCache)
	assert.Nil(t, app.SessionCacheCloser)
}

func TestNew_ImportEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImportEnabled = true

	app := newTestApp(t, cfg)
	assert.True(t, app.Services.imports.Enabled())
}

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := get(t, app.Router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := get(t, app.Router, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_GoogleLogin(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := get(t, app.Router, "/api/auth/google/login")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["authorization_url"], "accounts.google.com")
	assert.Contains(t, body["authorization_url"], "client_id=client-id")
	assert.NotEmpty(t, body["state"])

	var stateCookie bool
	for _, c := range w.Result().Cookies() {
		if c.Name == stateSessionName {
			stateCookie = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, stateCookie, "state cookie not set")
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	for _, target := range []string{
		"/api/auth/me",
		"/api/auth/google/add-account",
		"/api/accounts",
		"/api/accounts/primary",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, app.Router, target)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_AddAccountRequiresSession(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	body := strings.NewReader(`{"code":"abc","state":"some-state-value-long-enough","current_user_email":"victim@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/add-account", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_not_found")
}

func TestRouter_MeWithStoredSession(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	user := &models.User{
		ID:       "user-1",
		Email:    "alice@example.com",
		Role:     models.RoleUser,
		IsActive: true,
	}
	tok, err := models.NewToken("ya29.bootstrap-token", "1//refresh", time.Hour, "", "")
	require.NoError(t, err)
	session, err := models.NewSession(
		&user.ID,
		tok,
		models.IdentityProfile{Email: user.Email},
		"state-value-0123456789",
		time.Now(),
	)
	require.NoError(t, err)
	_, err = app.DB.PersistLogin(ctx, user, true, session, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
	assert.NotContains(t, w.Body.String(), "ya29.bootstrap-token")
	// the resolved session is now cached
	assert.Equal(t, 1, app.SessionCache.(*cache.MemoryCache[models.Session]).Len())
}

func TestErrorLogger_RateLimitsPerOperation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := newErrorLogger(zap.New(core))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.True(t, e.logIfNeeded("count_active_sessions", boom))
	assert.False(t, e.logIfNeeded("count_active_sessions", boom))
	assert.True(t, e.logIfNeeded("count_primary_accounts", boom))

	now = now.Add(e.rateLimitWindow)
	assert.True(t, e.logIfNeeded("count_active_sessions", boom))
	assert.Equal(t, 3, logs.Len())
}

func TestRueidisOptions(t *testing.T) {
	cfg := &config.Config{RedisAddr: "redis:6379", RedisPassword: "pw", RedisDB: 2}

	opts := rueidisOptions(cfg, sessionKeyPrefix, time.Minute)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "mailauth:sessions:", opts.KeyPrefix)
	assert.Equal(t, time.Minute, opts.ClientTTL)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCloseWithTimeout(t *testing.T) {
	require.NoError(t, closeWithTimeout(time.Second, func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, closeWithTimeout(0, func() error { return boom }), boom)

	release := make(chan struct{})
	defer close(release)
	err := closeWithTimeout(10*time.Millisecond, func() error {
		<-release
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish")
}

func TestRouter_MetricsWithToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = true
	cfg.MetricsToken = "scrape-token"
	cfg.MetricsGaugeUpdateEnabled = true
	cfg.MetricsGaugeUpdateInterval = time.Minute

	app := newTestApp(t, cfg)
	assert.NotNil(t, app.MetricsCache)

	w := get(t, app.Router, "/metrics")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-token")
	w = httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_in_flight")
}
