package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.IdentityProvider = (*MockIdentityProvider)(nil)

// MockIdentityProvider simulates an identity provider with an in-memory
// account cache and controllable status and event streams.
type MockIdentityProvider struct {
	HandleRedirectFunc          func(ctx context.Context) (*domainauth.AuthResult, error)
	LoginRedirectFunc           func(ctx context.Context) error
	AcquireTokenSilentFunc      func(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error)
	AcquireTokenInteractiveFunc func(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error)
	ClearAccountCacheFunc       func(ctx context.Context, req domainauth.ClearCacheRequest) error

	mu             sync.Mutex
	accounts       []domainauth.Account
	active         *domainauth.Account
	setActiveCalls []*domainauth.Account
	loginCalls     int
	redirectCalls  int
	clearRequests  []domainauth.ClearCacheRequest
	emitted        int

	status *observable.Broadcaster[domainauth.InteractionStatus]
	events *observable.Broadcaster[domainauth.Event]
}

// NewMockIdentityProvider creates a provider whose cache holds accounts and
// whose status stream starts at None.
func NewMockIdentityProvider(accounts ...domainauth.Account) *MockIdentityProvider {
	return &MockIdentityProvider{
		accounts: append([]domainauth.Account(nil), accounts...),
		status:   observable.NewReplayBroadcaster(domainauth.InteractionNone),
		events:   observable.NewBroadcaster[domainauth.Event](),
	}
}

func (m *MockIdentityProvider) ActiveAccount() *domainauth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	acct := *m.active
	return &acct
}

func (m *MockIdentityProvider) AllAccounts() []domainauth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.Account(nil), m.accounts...)
}

func (m *MockIdentityProvider) SetActiveAccount(acct *domainauth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct == nil {
		m.active = nil
	} else {
		cp := *acct
		m.active = &cp
	}
	m.setActiveCalls = append(m.setActiveCalls, m.active)
}

func (m *MockIdentityProvider) HandleRedirect(ctx context.Context) (*domainauth.AuthResult, error) {
	m.mu.Lock()
	m.redirectCalls++
	fn := m.HandleRedirectFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil, nil
}

func (m *MockIdentityProvider) LoginRedirect(ctx context.Context) error {
	m.mu.Lock()
	m.loginCalls++
	fn := m.LoginRedirectFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *MockIdentityProvider) AcquireTokenSilent(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if m.AcquireTokenSilentFunc != nil {
		return m.AcquireTokenSilentFunc(ctx, req)
	}
	res := domainauth.AuthResult{AccessToken: "silent-token", Scopes: req.Scopes}
	if req.Account != nil {
		res.Account = *req.Account
	}
	return res, nil
}

func (m *MockIdentityProvider) AcquireTokenInteractive(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if m.AcquireTokenInteractiveFunc != nil {
		return m.AcquireTokenInteractiveFunc(ctx, req)
	}
	return domainauth.AuthResult{AccessToken: "interactive-token", Scopes: req.Scopes}, nil
}

// ClearAccountCache records the request and, by default, removes the account.
func (m *MockIdentityProvider) ClearAccountCache(ctx context.Context, req domainauth.ClearCacheRequest) error {
	m.mu.Lock()
	m.clearRequests = append(m.clearRequests, req)
	fn := m.ClearAccountCacheFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, req); err != nil {
			return err
		}
	}
	m.RemoveAccount(req.Account.HomeAccountID)
	return nil
}

func (m *MockIdentityProvider) InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus {
	return m.status.Subscribe(ctx)
}

func (m *MockIdentityProvider) Events(ctx context.Context) <-chan domainauth.Event {
	return m.events.Subscribe(ctx)
}

// EmitStatus publishes an interaction status change.
func (m *MockIdentityProvider) EmitStatus(s domainauth.InteractionStatus) {
	m.countEmit()
	m.status.Publish(s)
}

// EmitEvent publishes an auth event.
func (m *MockIdentityProvider) EmitEvent(e domainauth.Event) {
	m.countEmit()
	m.events.Publish(e)
}

func (m *MockIdentityProvider) countEmit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted++
}

// Emitted returns how many statuses and events were published through
// EmitStatus and EmitEvent. The initial None replayed to a new status
// subscriber is not counted.
func (m *MockIdentityProvider) Emitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitted
}

// SetAccounts replaces the cached accounts without touching the active pointer.
func (m *MockIdentityProvider) SetAccounts(accounts ...domainauth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append([]domainauth.Account(nil), accounts...)
}

// AddAccount appends an account to the cache.
func (m *MockIdentityProvider) AddAccount(acct domainauth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, acct)
}

// RemoveAccount drops an account and clears the active pointer if it matched.
func (m *MockIdentityProvider) RemoveAccount(homeAccountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.accounts[:0]
	for _, a := range m.accounts {
		if a.HomeAccountID != homeAccountID {
			kept = append(kept, a)
		}
	}
	m.accounts = kept
	if m.active != nil && m.active.HomeAccountID == homeAccountID {
		m.active = nil
	}
}

// ForceActive sets the active pointer without recording a SetActiveAccount call.
func (m *MockIdentityProvider) ForceActive(acct *domainauth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct == nil {
		m.active = nil
		return
	}
	cp := *acct
	m.active = &cp
}

// SetActiveCalls returns the arguments of every SetActiveAccount call.
func (m *MockIdentityProvider) SetActiveCalls() []*domainauth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domainauth.Account(nil), m.setActiveCalls...)
}

// LoginCalls returns how many times LoginRedirect was invoked.
func (m *MockIdentityProvider) LoginCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCalls
}

// RedirectCalls returns how many times HandleRedirect was invoked.
func (m *MockIdentityProvider) RedirectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redirectCalls
}

// ClearRequests returns every ClearAccountCache request in call order.
func (m *MockIdentityProvider) ClearRequests() []domainauth.ClearCacheRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.ClearCacheRequest(nil), m.clearRequests...)
}

// Subscribers returns the number of live stream subscriptions.
func (m *MockIdentityProvider) Subscribers() int {
	return m.status.Subscribers() + m.events.Subscribers()
}

// RecordingPhotoFetcher returns a fixed photo URL and records tokens it was given.
type RecordingPhotoFetcher struct {
	URL string
	Err error

	mu     sync.Mutex
	tokens []string
}

func (r *RecordingPhotoFetcher) FetchPhoto(_ context.Context, accessToken string) (string, error) {
	r.mu.Lock()
	r.tokens = append(r.tokens, accessToken)
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.URL, nil
}

// Tokens returns the access tokens passed to FetchPhoto.
func (r *RecordingPhotoFetcher) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}
