package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-ui-auth/internal/adapters/memory"
	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/mocks"
	authmocks "github.com/target/mmk-ui-auth/internal/mocks/auth"
)

const waitFor = 2 * time.Second

type sessionFixture struct {
	m        *SessionManager
	provider *authmocks.MockIdentityProvider
	storage  *memory.Storage
	router   *navigation.Router
}

func newSessionFixture(
	t *testing.T,
	provider *authmocks.MockIdentityProvider,
	mutate ...func(*SessionManagerOptions),
) *sessionFixture {
	t.Helper()
	storage := memory.NewStorage()
	router := navigation.NewRouter(domainauth.Location{Path: "/"}, nil)
	tracker, err := NewRedirectTracker(RedirectTrackerOptions{Storage: storage})
	require.NoError(t, err)

	opts := SessionManagerOptions{
		Provider:  provider,
		Navigator: router,
		Tracker:   tracker,
		Scopes:    testScopes,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m, err := NewSessionManager(opts)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return &sessionFixture{m: m, provider: provider, storage: storage, router: router}
}

func (f *sessionFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.m.Start(context.Background()))
	f.settle(t)
}

// settle waits until every emitted status and event has reached the loop and
// every worker continuation has been applied. The replayed initial status
// accounts for the extra item once the manager has started.
func (f *sessionFixture) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		want := int64(f.provider.Emitted())
		if f.m.started.Load() {
			want++
		}
		return f.m.handledStreamItems() == want && f.m.flush() && f.m.idle()
	}, waitFor, 5*time.Millisecond)
}

func (f *sessionFixture) storedTarget(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.storage.Get(context.Background(), domainauth.RedirectURLKey)
	require.NoError(t, err)
	return v, ok
}

func TestNewSessionManager_RequiredDependencies(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	router := navigation.NewRouter(domainauth.Location{}, nil)
	tracker, err := NewRedirectTracker(RedirectTrackerOptions{Storage: memory.NewStorage()})
	require.NoError(t, err)

	_, err = NewSessionManager(SessionManagerOptions{Navigator: router, Tracker: tracker})
	assert.ErrorContains(t, err, "Provider is required")
	_, err = NewSessionManager(SessionManagerOptions{Provider: provider, Tracker: tracker})
	assert.ErrorContains(t, err, "Navigator is required")
	_, err = NewSessionManager(SessionManagerOptions{Provider: provider, Navigator: router})
	assert.ErrorContains(t, err, "Tracker is required")
}

func TestSessionManager_StartTwice(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)
	assert.ErrorIs(t, f.m.Start(context.Background()), ErrSessionStarted)
}

// ═══════════════════════════════════════════════════════════════════════════
// Startup and redirect completion
// ═══════════════════════════════════════════════════════════════════════════

func TestSessionManager_ColdStartWithoutAccounts(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)

	assert.Equal(t, domainauth.SessionState{}, f.m.State())
	assert.Nil(t, f.m.Profile().Get())
	assert.Empty(t, f.m.AccessToken().Get())
	assert.Nil(t, f.m.Account())
	assert.Equal(t, 1, f.provider.RedirectCalls())
}

func TestSessionManager_IsAuthenticatingDuringRedirectCompletion(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	release := make(chan struct{})
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		<-release
		return nil, nil
	}
	f := newSessionFixture(t, provider)
	require.NoError(t, f.m.Start(context.Background()))

	require.Eventually(t, func() bool { return f.m.IsAuthenticating().Get() }, waitFor, 5*time.Millisecond)
	close(release)
	f.settle(t)
	assert.False(t, f.m.IsAuthenticating().Get())
}

func TestSessionManager_ColdStartAdoptsCachedAccount(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice, testBob))
	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	require.NotNil(t, f.m.Account())
	assert.Equal(t, "alice-id", f.m.Account().HomeAccountID)
	assert.Equal(t, "alice-id", f.provider.ActiveAccount().HomeAccountID)
	assert.Equal(t, "silent-token", f.m.AccessToken().Get())

	profile := f.m.Profile().Get()
	require.NotNil(t, profile)
	assert.Equal(t, "Alice", profile.FirstName)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestSessionManager_RedirectReturnRestoresTarget(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		provider.AddAccount(testAlice)
		return &domainauth.AuthResult{Account: testAlice, AccessToken: "t"}, nil
	}
	f := newSessionFixture(t, provider)
	ctx := context.Background()
	require.NoError(t, f.storage.Set(ctx, domainauth.RedirectURLKey, "/reports?id=42"))
	require.NoError(t, f.storage.Set(ctx, domainauth.RedirectCountKey, "3"))

	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.False(t, f.m.IsAuthenticating().Get())
	assert.Equal(t, domainauth.Location{Path: "/reports", Query: "?id=42"}, f.router.Location())
	_, ok := f.storedTarget(t)
	assert.False(t, ok, "target is consumed")
	_, ok, _ = f.storage.Get(ctx, domainauth.RedirectCountKey)
	assert.False(t, ok, "counter is reset")
}

func TestSessionManager_RedirectResultWithoutTargetDoesNotNavigate(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		provider.AddAccount(testAlice)
		return &domainauth.AuthResult{Account: testAlice}, nil
	}
	f := newSessionFixture(t, provider)
	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Empty(t, f.router.History())
}

func TestSessionManager_RedirectErrorResetsCounter(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		return nil, errors.New("state mismatch")
	}
	f := newSessionFixture(t, provider)
	ctx := context.Background()
	require.NoError(t, f.storage.Set(ctx, domainauth.RedirectURLKey, "/reports"))
	require.NoError(t, f.storage.Set(ctx, domainauth.RedirectCountKey, "5"))

	f.start(t)

	assert.Equal(t, domainauth.SessionState{}, f.m.State())
	_, ok, _ := f.storage.Get(ctx, domainauth.RedirectCountKey)
	assert.False(t, ok)
	target, ok := f.storedTarget(t)
	assert.True(t, ok, "target survives a failed completion")
	assert.Equal(t, "/reports", target)
	assert.Empty(t, f.router.History())
}

func TestSessionManager_CompleteRedirectSignalsDone(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	f := newSessionFixture(t, provider)
	f.start(t)

	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		provider.AddAccount(testBob)
		return &domainauth.AuthResult{Account: testBob}, nil
	}
	select {
	case <-f.m.CompleteRedirect():
	case <-time.After(waitFor):
		t.Fatal("redirect completion did not finish")
	}
	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Equal(t, 2, provider.RedirectCalls())
}

func TestSessionManager_CompleteRedirectDuringRunningPassIsNotLost(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	release := make(chan struct{})
	var calls atomic.Int32
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		if calls.Add(1) == 1 {
			// Startup pass: read the location before the callback set it.
			<-release
			return nil, nil
		}
		provider.AddAccount(testBob)
		return &domainauth.AuthResult{Account: testBob}, nil
	}
	f := newSessionFixture(t, provider)
	require.NoError(t, f.m.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, 5*time.Millisecond)

	done := f.m.CompleteRedirect()
	require.True(t, f.m.flush())
	select {
	case <-done:
		t.Fatal("completion released before its pass ran")
	default:
	}

	close(release)
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("queued redirect completion did not finish")
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Equal(t, "bob-id", f.m.Account().HomeAccountID)
	f.settle(t)
	assert.False(t, f.m.IsAuthenticating().Get())
}

func TestSessionManager_QueuedCompletionsShareOneFollowUpPass(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	release := make(chan struct{})
	var calls atomic.Int32
	provider.HandleRedirectFunc = func(context.Context) (*domainauth.AuthResult, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil, nil
	}
	f := newSessionFixture(t, provider)
	require.NoError(t, f.m.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, 5*time.Millisecond)

	first, second := f.m.CompleteRedirect(), f.m.CompleteRedirect()
	close(release)
	for _, done := range []<-chan struct{}{first, second} {
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("queued redirect completion did not finish")
		}
	}
	f.settle(t)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSessionManager_CloseReleasesQueuedCompletion(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	provider.HandleRedirectFunc = func(ctx context.Context) (*domainauth.AuthResult, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, nil
	}
	f := newSessionFixture(t, provider)
	require.NoError(t, f.m.Start(context.Background()))
	require.Eventually(t, func() bool { return f.m.IsAuthenticating().Get() }, waitFor, 5*time.Millisecond)

	done := f.m.CompleteRedirect()
	require.True(t, f.m.flush())
	f.m.Close()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Close must release queued completions")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Provider streams
// ═══════════════════════════════════════════════════════════════════════════

func TestSessionManager_InteractionStatusDrivesLoginInProgress(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)

	f.provider.EmitStatus(domainauth.InteractionLogin)
	require.Eventually(t, func() bool { return f.m.LoginInProgress().Get() }, waitFor, 5*time.Millisecond)

	// Unobserved statuses leave the flag alone.
	f.provider.EmitStatus(domainauth.InteractionAcquireToken)
	f.provider.EmitStatus(domainauth.InteractionHandleRedirect)
	f.settle(t)
	assert.True(t, f.m.LoginInProgress().Get())

	f.provider.EmitStatus(domainauth.InteractionNone)
	require.Eventually(t, func() bool { return !f.m.LoginInProgress().Get() }, waitFor, 5*time.Millisecond)
}

func TestSessionManager_RepeatedStatusesAreIdempotent(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice))
	f.start(t)

	for i := 0; i < 5; i++ {
		f.provider.EmitStatus(domainauth.InteractionNone)
	}
	f.provider.EmitStatus(domainauth.InteractionLogin)
	require.Eventually(t, func() bool { return f.m.LoginInProgress().Get() }, waitFor, 5*time.Millisecond)
	f.settle(t)

	assert.Len(t, f.provider.SetActiveCalls(), 1, "account adopted exactly once")
	assert.True(t, f.m.IsLoggedIn().Get())
}

func TestSessionManager_LoginSuccessEventSelectsPayloadAccount(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice, testBob))
	f.start(t)
	require.Equal(t, "alice-id", f.m.Account().HomeAccountID)

	f.provider.EmitEvent(domainauth.Event{Type: domainauth.EventLoginSuccess, Account: &testBob})
	require.Eventually(t, func() bool {
		acct := f.m.Account()
		return acct != nil && acct.HomeAccountID == "bob-id"
	}, waitFor, 5*time.Millisecond)
	f.settle(t)

	assert.Equal(t, "bob-id", f.provider.ActiveAccount().HomeAccountID)
	profile := f.m.Profile().Get()
	require.NotNil(t, profile)
	assert.Equal(t, "Bob Example", profile.DisplayName)
}

func TestSessionManager_AccountsRemovedElsewhereEndSession(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice))
	f.start(t)
	require.True(t, f.m.IsLoggedIn().Get())
	require.NotNil(t, f.m.Profile().Get())
	require.NotEmpty(t, f.m.AccessToken().Get())

	// The cache is emptied behind the session's back; the active pointer is stale.
	f.provider.RemoveAccount("alice-id")
	f.provider.ForceActive(&testAlice)
	f.provider.EmitStatus(domainauth.InteractionNone)
	f.settle(t)

	assert.False(t, f.m.IsLoggedIn().Get())
	assert.Nil(t, f.m.Account())
	assert.Nil(t, f.m.Profile().Get())
	assert.Empty(t, f.m.AccessToken().Get())
}

func TestSessionManager_EventsWithoutAccountAreIgnored(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)

	f.provider.EmitEvent(domainauth.Event{Type: domainauth.EventLoginSuccess})
	f.provider.EmitEvent(domainauth.Event{Type: domainauth.EventLogoutSuccess})
	f.provider.EmitEvent(domainauth.Event{Type: domainauth.EventLoginFailure, Err: errors.New("x")})
	f.settle(t)

	assert.Empty(t, f.provider.SetActiveCalls())
	assert.False(t, f.m.IsLoggedIn().Get())
}

// ═══════════════════════════════════════════════════════════════════════════
// Tokens
// ═══════════════════════════════════════════════════════════════════════════

func TestSessionManager_TokenEscalatesOnInteractionRequired(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	var interactive atomic.Int32
	provider.AcquireTokenSilentFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{}, domainauth.ErrInteractionRequired
	}
	provider.AcquireTokenInteractiveFunc = func(_ context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
		interactive.Add(1)
		assert.Equal(t, testScopes, req.Scopes)
		return domainauth.AuthResult{AccessToken: "prompted"}, nil
	}
	f := newSessionFixture(t, provider)
	f.start(t)

	assert.Equal(t, "prompted", f.m.AccessToken().Get())
	assert.Equal(t, int32(1), interactive.Load())
}

func TestSessionManager_TokenFailurePublishesEmpty(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	provider.AcquireTokenSilentFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{}, errors.New("timeout")
	}
	provider.AcquireTokenInteractiveFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		t.Error("interactive acquisition must not run for transient errors")
		return domainauth.AuthResult{}, nil
	}
	f := newSessionFixture(t, provider)
	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Empty(t, f.m.AccessToken().Get())
}

func TestSessionManager_InteractiveFailureLeavesTokenEmpty(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	var interactive atomic.Int32
	provider.AcquireTokenSilentFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{}, fmt.Errorf("refresh: %w", domainauth.ErrInteractionRequired)
	}
	provider.AcquireTokenInteractiveFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		interactive.Add(1)
		return domainauth.AuthResult{}, errors.New("user cancelled")
	}
	f := newSessionFixture(t, provider)
	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Empty(t, f.m.AccessToken().Get())
	assert.Equal(t, int32(1), interactive.Load())
}

func TestSessionManager_NoScopesSkipsTokenAcquisition(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	provider.AcquireTokenSilentFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		t.Error("no token expected without scopes")
		return domainauth.AuthResult{}, nil
	}
	f := newSessionFixture(t, provider, func(o *SessionManagerOptions) { o.Scopes = nil })
	f.start(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Empty(t, f.m.AccessToken().Get())
}

func TestSessionManager_StaleTokenIsDiscarded(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice, testBob)
	release := make(chan struct{})
	var once sync.Once
	releaseAlice := func() { once.Do(func() { close(release) }) }

	provider.AcquireTokenSilentFunc = func(_ context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
		if req.Account.HomeAccountID == "alice-id" {
			<-release
			return domainauth.AuthResult{AccessToken: "alice-token"}, nil
		}
		return domainauth.AuthResult{AccessToken: "bob-token"}, nil
	}
	f := newSessionFixture(t, provider)
	t.Cleanup(releaseAlice)

	require.NoError(t, f.m.Start(context.Background()))
	require.Eventually(t, func() bool { return f.m.Account() != nil }, waitFor, 5*time.Millisecond)

	f.provider.EmitEvent(domainauth.Event{Type: domainauth.EventLoginSuccess, Account: &testBob})
	require.Eventually(t, func() bool { return f.m.AccessToken().Get() == "bob-token" }, waitFor, 5*time.Millisecond)

	releaseAlice()
	f.settle(t)
	assert.Equal(t, "bob-token", f.m.AccessToken().Get())
}

// ═══════════════════════════════════════════════════════════════════════════
// Login
// ═══════════════════════════════════════════════════════════════════════════

func TestSessionManager_LoginFromDeepLinkTracksLocation(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)
	f.router.SetLocation(domainauth.Location{Path: "/reports", Query: "?id=9"})

	f.m.Login()
	f.settle(t)

	assert.Equal(t, 1, f.provider.LoginCalls())
	assert.True(t, f.m.LoginInProgress().Get())
	target, ok := f.storedTarget(t)
	require.True(t, ok)
	assert.Equal(t, "/reports?id=9", target)
}

func TestSessionManager_LoginFromHomeDoesNotTrack(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(), func(o *SessionManagerOptions) {
		o.HomePath = "/dashboard"
	})
	f.start(t)
	f.router.SetLocation(domainauth.Location{Path: "/dashboard"})

	f.m.Login()
	f.settle(t)

	assert.Equal(t, 1, f.provider.LoginCalls())
	_, ok := f.storedTarget(t)
	assert.False(t, ok)
}

func TestSessionManager_LoginGuard(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider())
	f.start(t)

	f.provider.EmitStatus(domainauth.InteractionLogin)
	require.Eventually(t, func() bool { return f.m.LoginInProgress().Get() }, waitFor, 5*time.Millisecond)
	f.router.SetLocation(domainauth.Location{Path: "/reports"})

	f.m.Login()
	f.settle(t)

	assert.Zero(t, f.provider.LoginCalls())
	assert.True(t, f.m.LoginInProgress().Get())
	_, ok := f.storedTarget(t)
	assert.False(t, ok, "guarded login must not touch storage")
}

func TestSessionManager_LoginErrorsResetFlag(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "interaction in progress", err: fmt.Errorf("provider: %w", domainauth.ErrInteractionInProgress)},
		{name: "network", err: errors.New("dial tcp: connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := authmocks.NewMockIdentityProvider()
			provider.LoginRedirectFunc = func(context.Context) error { return tt.err }
			f := newSessionFixture(t, provider)
			f.start(t)

			f.m.Login()
			f.settle(t)

			assert.Equal(t, 1, provider.LoginCalls())
			assert.False(t, f.m.LoginInProgress().Get())
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Logout
// ═══════════════════════════════════════════════════════════════════════════

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("corr-%d", n.Add(1)) }
}

func TestSessionManager_LogoutClearsEveryAccount(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice, testBob), func(o *SessionManagerOptions) {
		o.NewCorrelationID = sequentialIDs()
	})
	f.start(t)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.RedirectURLKey, "/stale"))
	f.router.SetLocation(domainauth.Location{Path: "/reports"})

	f.m.Logout()
	f.settle(t)

	reqs := f.provider.ClearRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "alice-id", reqs[0].Account.HomeAccountID)
	assert.Equal(t, "corr-1", reqs[0].CorrelationID)
	assert.Equal(t, "bob-id", reqs[1].Account.HomeAccountID)
	assert.Equal(t, "corr-2", reqs[1].CorrelationID)

	assert.Equal(t, domainauth.SessionState{}, f.m.State())
	assert.Nil(t, f.m.Profile().Get())
	assert.Empty(t, f.m.AccessToken().Get())
	assert.Nil(t, f.provider.ActiveAccount())
	assert.Equal(t, "/", f.router.Location().Path)
	_, ok := f.storedTarget(t)
	assert.False(t, ok)
}

func TestSessionManager_LogoutContinuesPastClearFailure(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice, testBob)
	provider.ClearAccountCacheFunc = func(_ context.Context, req domainauth.ClearCacheRequest) error {
		if req.Account.HomeAccountID == "alice-id" {
			return errors.New("cache locked")
		}
		return nil
	}
	f := newSessionFixture(t, provider)
	f.start(t)

	f.m.Logout()
	f.settle(t)

	reqs := provider.ClearRequests()
	require.Len(t, reqs, 2)
	assert.NotEqual(t, reqs[0].CorrelationID, reqs[1].CorrelationID)
	assert.False(t, f.m.LoginInProgress().Get())
	// The surviving account is reconciled back in with a fresh profile and token.
	assert.Equal(t, []domainauth.Account{testAlice}, provider.AllAccounts())
	assert.True(t, f.m.IsLoggedIn().Get())
	require.NotNil(t, f.m.Account())
	assert.Equal(t, "alice-id", f.m.Account().HomeAccountID)
	profile := f.m.Profile().Get()
	require.NotNil(t, profile, "a re-adopted account must have a profile")
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "silent-token", f.m.AccessToken().Get())
}

func TestSessionManager_LogoutDropsStaleTokenOfSurvivingAccount(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	var silent atomic.Int32
	provider.AcquireTokenSilentFunc = func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
		return domainauth.AuthResult{AccessToken: fmt.Sprintf("token-%d", silent.Add(1))}, nil
	}
	provider.ClearAccountCacheFunc = func(context.Context, domainauth.ClearCacheRequest) error {
		return errors.New("cache locked")
	}
	f := newSessionFixture(t, provider)
	f.start(t)
	require.Equal(t, "token-1", f.m.AccessToken().Get())

	f.m.Logout()
	f.settle(t)

	assert.True(t, f.m.IsLoggedIn().Get())
	assert.Equal(t, "token-2", f.m.AccessToken().Get(), "token is reacquired after logout resets the account")
	assert.NotNil(t, f.m.Profile().Get())
}

func TestSessionManager_LogoutNavigationFailureStillCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	nav := mocks.NewMockNavigator(ctrl)
	nav.EXPECT().Navigate(gomock.Any(), "/").Return(errors.New("client gone"))

	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice), func(o *SessionManagerOptions) {
		o.Navigator = nav
	})
	f.start(t)
	require.True(t, f.m.IsLoggedIn().Get())

	f.m.Logout()
	f.settle(t)

	assert.Equal(t, domainauth.SessionState{}, f.m.State())
	assert.Nil(t, f.m.Profile().Get())
	assert.Empty(t, f.m.AccessToken().Get())
	assert.Len(t, f.provider.ClearRequests(), 1)
}

func TestSessionManager_LogoutGuard(t *testing.T) {
	f := newSessionFixture(t, authmocks.NewMockIdentityProvider(testAlice))
	f.start(t)

	f.provider.EmitStatus(domainauth.InteractionLogin)
	require.Eventually(t, func() bool { return f.m.LoginInProgress().Get() }, waitFor, 5*time.Millisecond)

	f.m.Logout()
	f.settle(t)

	assert.Empty(t, f.provider.ClearRequests())
	assert.True(t, f.m.IsLoggedIn().Get())
}

// ═══════════════════════════════════════════════════════════════════════════
// Teardown
// ═══════════════════════════════════════════════════════════════════════════

func TestSessionManager_CloseTearsDownSubscriptions(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider(testAlice)
	f := newSessionFixture(t, provider)
	f.start(t)
	require.Eventually(t, func() bool { return provider.Subscribers() == 2 }, waitFor, 5*time.Millisecond)

	unsub, ch := f.m.IsLoggedIn().Subscribe()
	defer unsub()
	<-ch

	f.m.Close()
	require.Eventually(t, func() bool { return provider.Subscribers() == 0 }, waitFor, 5*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok)

	f.m.Login()
	f.m.Logout()
	assert.Zero(t, provider.LoginCalls())
	assert.Empty(t, provider.ClearRequests())
	select {
	case <-f.m.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}

func TestSessionManager_StartContextCancellationStopsStreams(t *testing.T) {
	provider := authmocks.NewMockIdentityProvider()
	f := newSessionFixture(t, provider)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.m.Start(ctx))
	require.Eventually(t, func() bool { return provider.Subscribers() == 2 }, waitFor, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return provider.Subscribers() == 0 }, waitFor, 5*time.Millisecond)
}
