package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/auth"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/metrics"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCallback_NewUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.login(t, "code-1", "Alice@Example.com")

	assert.True(t, result.IsNewUser)
	assert.Equal(t, StageComplete, result.Stage)
	assert.Equal(t, "ya29.access-code-1", result.AccessToken)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.EmailImport)
	assert.True(t, result.EmailImport.Success)
	assert.Equal(t, 50, result.EmailImport.Stored)

	user, err := env.store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, user.LastLogin)

	session, err := env.store.GetSession(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.OwnerID())

	count, err := env.store.CountActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	primary, err := env.store.GetPrimaryAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", primary.Email)

	calls := env.importer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 50, calls[0].Limit)
	assert.Equal(t, user.ID, calls[0].AccountOwner)
	assert.Equal(t, "alice@example.com", calls[0].EmailHolder)
}

func TestProcessCallback_RepeatLoginKeepsOneActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.login(t, "code-1", "bob@example.com")
	second := env.login(t, "code-2", "bob@example.com")

	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Nil(t, second.EmailImport, "import only runs for new users")
	assert.Len(t, env.importer.calls(), 1)

	count, err := env.store.CountActiveSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	old, err := env.store.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	accounts, err := env.store.ListAccountsByUser(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestProcessCallback_ImportFailureIsSoft(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		panicMsg string
	}{
		{name: "error", err: errors.New("gmail unavailable")},
		{name: "panic", panicMsg: "nil map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.importer.err = tt.err
			env.importer.panicMsg = tt.panicMsg

			result := env.login(t, "code-1", "carol@example.com")

			assert.True(t, result.IsNewUser)
			assert.Equal(t, StageComplete, result.Stage)
			require.NotNil(t, result.EmailImport)
			assert.False(t, result.EmailImport.Success)
			assert.NotEmpty(t, result.EmailImport.Error)
			assert.True(t, result.Degraded())

			session, err := env.store.GetSession(context.Background(), result.SessionID)
			require.NoError(t, err)
			assert.True(t, session.IsActive)

			_, err = env.store.GetPrimaryAccount(context.Background(), result.User.ID)
			assert.NoError(t, err, "primary account is ensured regardless of import outcome")
		})
	}
}

func TestProcessCallback_FatalFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv) CallbackInput
		kind  error
		code  string
	}{
		{
			name: "provider error",
			setup: func(env *testEnv) CallbackInput {
				return CallbackInput{Error: "access_denied", ErrorDescription: "user denied", State: loginState(t)}
			},
			kind: ErrOAuthProvider,
			code: "oauth_error",
		},
		{
			name: "malformed state",
			setup: func(env *testEnv) CallbackInput {
				return CallbackInput{Code: "code-1", State: "short"}
			},
			kind: ErrInvalidState,
			code: "invalid_state",
		},
		{
			name: "exchange failure",
			setup: func(env *testEnv) CallbackInput {
				return CallbackInput{Code: "unknown-code", State: loginState(t)}
			},
			kind: ErrTokenExchange,
			code: "token_exchange_failed",
		},
		{
			name: "profile failure",
			setup: func(env *testEnv) CallbackInput {
				env.provider.addProfile(t, "code-1", "dave@example.com")
				env.provider.profileErr = errors.New("userinfo 500")
				return CallbackInput{Code: "code-1", State: loginState(t)}
			},
			kind: ErrProfileFetch,
			code: "profile_fetch_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.auth.ProcessCallback(context.Background(), tt.setup(env))

			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.Empty(t, env.importer.calls())

			_, err = env.store.GetUserByEmail(context.Background(), "dave@example.com")
			assert.ErrorIs(t, err, store.ErrRecordNotFound)
		})
	}
}

func TestProcessCallback_ProviderErrorSkipsExchange(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.ProcessCallback(context.Background(), CallbackInput{
		Code:  "code-1",
		Error: "access_denied",
		State: loginState(t),
	})
	assert.ErrorIs(t, err, ErrOAuthProvider)
	assert.Equal(t, 0, env.provider.exchanged)
}

func TestLinkAccount_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.login(t, "code-1", "erin@example.com")

	env.provider.addProfile(t, "link-1", "erin.work@example.com")
	env.provider.addProfile(t, "link-2", "erin.work@example.com")

	first, err := env.auth.LinkAccount(ctx, LinkInput{
		CallbackInput:    CallbackInput{Code: "link-1", State: linkState(t, owner.SessionID)},
		CurrentUserEmail: "erin@example.com",
	})
	require.NoError(t, err)
	assert.True(t, first.AccountAdded)
	assert.False(t, first.AccountExists)
	assert.False(t, first.Account.IsPrimary)
	require.NotNil(t, first.EmailImport)
	assert.True(t, first.EmailImport.Success)

	second, err := env.auth.LinkAccount(ctx, LinkInput{
		CallbackInput:    CallbackInput{Code: "link-2", State: linkState(t, owner.SessionID)},
		CurrentUserEmail: "erin@example.com",
	})
	require.NoError(t, err)
	assert.False(t, second.AccountAdded)
	assert.True(t, second.AccountExists)
	assert.Nil(t, second.EmailImport)
	assert.Equal(t, first.Account.ID, second.Account.ID)

	accounts, err := env.store.ListAccountsByUser(ctx, owner.User.ID)
	require.NoError(t, err)
	n := 0
	for _, a := range accounts {
		if a.Email == "erin.work@example.com" {
			n++
		}
	}
	assert.Equal(t, 1, n)

	// login import plus exactly one link import, scoped with both owners
	calls := env.importer.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 10, calls[1].Limit)
	assert.Equal(t, owner.User.ID, calls[1].AccountOwner)
	assert.Equal(t, "erin.work@example.com", calls[1].EmailHolder)

	// the link session is bound to the primary user and does not log anyone out
	linked, err := env.store.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, owner.User.ID, linked.OwnerID())
	original, err := env.store.GetSession(ctx, owner.SessionID)
	require.NoError(t, err)
	assert.True(t, original.IsActive)
}

func TestLinkAccount_ImportFailureKeepsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.login(t, "code-1", "frank@example.com")
	env.importer.err = errors.New("quota exceeded")
	env.provider.addProfile(t, "link-1", "frank.alt@example.com")

	result, err := env.auth.LinkAccount(ctx, LinkInput{
		CallbackInput:    CallbackInput{Code: "link-1", State: linkState(t, owner.SessionID)},
		CurrentUserEmail: "frank@example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.AccountAdded)
	assert.False(t, result.EmailImport.Success)
	assert.NotEmpty(t, result.Warnings)

	_, err = env.store.GetAccountByUserAndEmail(ctx, owner.User.ID, "frank.alt@example.com")
	assert.NoError(t, err)
}

func TestLinkAccount_RejectsForeignLinkingSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "code-1", "gina@example.com")
	other := env.login(t, "code-2", "mallory@example.com")
	env.provider.addProfile(t, "link-1", "gina.work@example.com")

	_, err := env.auth.LinkAccount(ctx, LinkInput{
		CallbackInput:    CallbackInput{Code: "link-1", State: linkState(t, other.SessionID)},
		CurrentUserEmail: "gina@example.com",
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLinkAccount_UnknownCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	env.provider.addProfile(t, "link-1", "someone@example.com")

	_, err := env.auth.LinkAccount(context.Background(), LinkInput{
		CallbackInput:    CallbackInput{Code: "link-1", State: linkState(t, "sess-unknown")},
		CurrentUserEmail: "ghost@example.com",
	})
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, 0, env.provider.exchanged)
}

func TestLinkAccount_RequiresAddAccountState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	victim := env.login(t, "code-1", "victor@example.com")
	env.provider.addProfile(t, "link-1", "intruder@example.com")
	exchanged := env.provider.exchanged

	for name, state := range map[string]string{
		"login state":        loginState(t),
		"no linking session": loginState(t) + "_add_account_",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.auth.LinkAccount(ctx, LinkInput{
				CallbackInput:    CallbackInput{Code: "link-1", State: state},
				CurrentUserEmail: "victor@example.com",
			})
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}

	assert.Equal(t, exchanged, env.provider.exchanged)
	accounts, err := env.store.ListAccountsByUser(ctx, victim.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "victor@example.com", accounts[0].Email)
}

func TestHandleCallback_RoutesByState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.addProfile(t, "code-1", "henry@example.com")

	outcome, err := env.auth.HandleCallback(ctx, CallbackInput{Code: "code-1", State: loginState(t)})
	require.NoError(t, err)
	assert.Equal(t, auth.FlowLogin, outcome.Flow)
	require.NotNil(t, outcome.Login)

	env.provider.addProfile(t, "link-1", "henry.work@example.com")
	outcome, err = env.auth.HandleCallback(ctx, CallbackInput{
		Code:  "link-1",
		State: linkState(t, outcome.Login.SessionID),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.FlowAddAccount, outcome.Flow)
	require.NotNil(t, outcome.Link)
	assert.True(t, outcome.Link.AccountAdded)
	assert.Equal(t, "henry.work@example.com", outcome.Link.Email)
}

func TestHandleCallback_AddAccountWithDeadSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.login(t, "code-1", "ivy@example.com")
	require.NoError(t, env.store.DeactivateSession(ctx, owner.SessionID))
	env.provider.addProfile(t, "link-1", "ivy.work@example.com")

	_, err := env.auth.HandleCallback(ctx, CallbackInput{
		Code:  "link-1",
		State: linkState(t, owner.SessionID),
	})
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestHandleCallback_RejectedLinkIsCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	env.auth.metrics = m
	env.provider.addProfile(t, "link-1", "kim.work@example.com")

	_, err := env.auth.HandleCallback(ctx, CallbackInput{
		Code:  "link-1",
		State: linkState(t, "sess-gone"),
	})
	require.ErrorIs(t, err, ErrSessionInvalid)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountLinksTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.CallbacksTotal.WithLabelValues(string(StageReceived), "failure"),
	))
	assert.Equal(t, 0, env.provider.exchanged)
}

func TestEnsurePrimaryAccount_Reconciles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := env.login(t, "code-1", "jack@example.com")

	primary, err := env.store.GetPrimaryAccount(ctx, result.User.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.DeleteAccount(ctx, primary.ID))

	account, created, err := env.auth.EnsurePrimaryAccount(ctx, result.User.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, account.IsPrimary)

	_, created, err = env.auth.EnsurePrimaryAccount(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, created)
}
