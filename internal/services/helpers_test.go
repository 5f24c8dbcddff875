package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/config"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRevokeDown = errors.New("revoke endpoint unavailable")

// fakeProvider maps authorization codes to profiles. The access token for
// code c is "ya29.access-c".
type fakeProvider struct {
	mu          sync.Mutex
	profiles    map[string]models.IdentityProfile
	noRefresh   bool
	exchangeErr error
	profileErr  error
	refreshErr  error
	revokeErr   error
	revoked     []string
	exchanged   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{profiles: map[string]models.IdentityProfile{}}
}

func (f *fakeProvider) addProfile(t *testing.T, code, email string) {
	t.Helper()
	p, err := models.NewIdentityProfile("sub-"+email, email, "", "", "en")
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[code] = p
}

func (f *fakeProvider) Name() string { return models.ProviderGoogle }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged++
	if f.exchangeErr != nil {
		return models.Token{}, f.exchangeErr
	}
	if _, ok := f.profiles[code]; !ok {
		return models.Token{}, errors.New("invalid_grant")
	}
	refresh := "1//refresh-" + code
	if f.noRefresh {
		refresh = ""
	}
	return models.NewToken("ya29.access-"+code, refresh, time.Hour, "openid email", "")
}

func (f *fakeProvider) FetchProfile(_ context.Context, tok models.Token) (models.IdentityProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return models.IdentityProfile{}, f.profileErr
	}
	p, ok := f.profiles[strings.TrimPrefix(tok.AccessToken, "ya29.access-")]
	if !ok {
		return models.IdentityProfile{}, errors.New("unknown token")
	}
	return p, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return models.Token{}, f.refreshErr
	}
	return models.NewToken("ya29.refreshed-"+refreshToken, "", time.Hour, "", "")
}

func (f *fakeProvider) Revoke(_ context.Context, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, tok)
	return f.revokeErr
}

// fakeImporter records requests and can fail or panic on demand
type fakeImporter struct {
	mu       sync.Mutex
	requests []core.ImportRequest
	err      error
	panicMsg string
}

func (f *fakeImporter) Import(_ context.Context, req core.ImportRequest) (*core.ImportResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &core.ImportResult{Fetched: req.Limit, Stored: req.Limit}, nil
}

func (f *fakeImporter) calls() []core.ImportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ImportRequest(nil), f.requests...)
}

type testEnv struct {
	store    *store.Store
	provider *fakeProvider
	importer *fakeImporter
	tokens   *token.Manager
	auth     *AuthService
	sessions *SessionService
	accounts *AccountService
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New("sqlite", ":memory:", &config.Config{
		DatabaseLogLevel: "silent",
		StoreTimeout:     5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestStore(t)
	provider := newFakeProvider()
	importer := &fakeImporter{}
	m := metrics.NewNoopMetrics()
	log := zap.NewNop()

	tokens := token.NewManager(provider, db, 5*time.Minute, m, log)
	accounts := NewAccountService(db, db, db, log)
	imports := NewImportOrchestrator(importer, tokens, m, log, 5*time.Second)

	return &testEnv{
		store:    db,
		provider: provider,
		importer: importer,
		tokens:   tokens,
		auth: NewAuthService(
			provider,
			NewIdentityResolver(db),
			db, db, db,
			accounts,
			imports,
			AuthLimits{ImportFirstLogin: 50, ImportLink: 10},
			m, log,
		),
		sessions: NewSessionService(db, db, tokens, provider, m, log),
		accounts: accounts,
	}
}

func loginState(t *testing.T) string {
	t.Helper()
	st, err := auth.NewState(auth.FlowLogin, "")
	require.NoError(t, err)
	return st.Value
}

func linkState(t *testing.T, sessionID string) string {
	t.Helper()
	st, err := auth.NewState(auth.FlowAddAccount, sessionID)
	require.NoError(t, err)
	return st.Value
}

// login runs a successful login callback for email
func (e *testEnv) login(t *testing.T, code, email string) *AuthResult {
	t.Helper()
	e.provider.addProfile(t, code, email)
	result, err := e.auth.ProcessCallback(context.Background(), CallbackInput{
		Code:  code,
		State: loginState(t),
	})
	require.NoError(t, err)
	return result
}
