package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// expiringImporter rejects the first token it sees as expired
type expiringImporter struct {
	calls  atomic.Int32
	tokens []string
}

func (e *expiringImporter) Import(_ context.Context, req core.ImportRequest) (*core.ImportResult, error) {
	e.tokens = append(e.tokens, req.Token.AccessToken)
	if e.calls.Add(1) == 1 {
		return nil, fmt.Errorf("gmail list: %w", token.ErrCredentialExpired)
	}
	return &core.ImportResult{Fetched: 3, Stored: 2}, nil
}

func TestImportOrchestrator_ReactiveRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	login := env.login(t, "code-1", "max@example.com")
	session, err := env.store.GetSession(ctx, login.SessionID)
	require.NoError(t, err)

	importer := &expiringImporter{}
	orch := NewImportOrchestrator(importer, env.tokens, metrics.NewNoopMetrics(), zap.NewNop(), time.Second)

	report := orch.Run(ctx, session, login.User.ID, "max@example.com", 5)
	require.NotNil(t, report)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, []string{"ya29.access-code-1", "ya29.refreshed-1//refresh-code-1"}, importer.tokens)

	stored, err := env.store.GetSession(ctx, login.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed-1//refresh-code-1", stored.Token.AccessToken)
}

func TestImportOrchestrator_ReactiveRefreshWithoutRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.provider.noRefresh = true
	ctx := context.Background()
	login := env.login(t, "code-1", "nell@example.com")
	session, err := env.store.GetSession(ctx, login.SessionID)
	require.NoError(t, err)

	orch := NewImportOrchestrator(&expiringImporter{}, env.tokens, metrics.NewNoopMetrics(), zap.NewNop(), time.Second)
	report := orch.Run(ctx, session, login.User.ID, "nell@example.com", 5)
	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "refresh token")
}

func TestImportOrchestrator_Disabled(t *testing.T) {
	orch := NewImportOrchestrator(nil, nil, metrics.NewNoopMetrics(), zap.NewNop(), 0)
	assert.False(t, orch.Enabled())
	assert.Nil(t, orch.Run(context.Background(), nil, "u", "h", 10))

	var none *ImportOrchestrator
	assert.False(t, none.Enabled())
}
