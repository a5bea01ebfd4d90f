package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
)

// fakeSession is a Session backed by plain observables.
type fakeSession struct {
	isLoggedIn       *observable.Value[bool]
	loginInProgress  *observable.Value[bool]
	isAuthenticating *observable.Value[bool]
	accessToken      *observable.Value[string]
	profile          *observable.Value[*domainauth.UserProfile]

	mu      sync.Mutex
	account *domainauth.Account
	claims  []domainauth.ClaimEntry

	// onComplete runs before the CompleteRedirect channel closes.
	onComplete func()
	// hang leaves the CompleteRedirect channel open.
	hang bool

	logins    atomic.Int32
	logouts   atomic.Int32
	redirects atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		isLoggedIn:       observable.NewValue(false),
		loginInProgress:  observable.NewValue(false),
		isAuthenticating: observable.NewValue(false),
		accessToken:      observable.NewValue(""),
		profile:          observable.NewValue[*domainauth.UserProfile](nil),
		done:             make(chan struct{}),
	}
}

func (f *fakeSession) State() domainauth.SessionState {
	return domainauth.SessionState{
		IsLoggedIn:       f.isLoggedIn.Get(),
		LoginInProgress:  f.loginInProgress.Get(),
		IsAuthenticating: f.isAuthenticating.Get(),
	}
}

func (f *fakeSession) Account() *domainauth.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.account == nil {
		return nil
	}
	cp := *f.account
	return &cp
}

func (f *fakeSession) Claims() []domainauth.ClaimEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims
}

func (f *fakeSession) setAccount(acct *domainauth.Account) {
	f.mu.Lock()
	f.account = acct
	f.mu.Unlock()
	f.isLoggedIn.Set(acct != nil)
}

func (f *fakeSession) IsLoggedIn() *observable.Value[bool]       { return f.isLoggedIn }
func (f *fakeSession) LoginInProgress() *observable.Value[bool]  { return f.loginInProgress }
func (f *fakeSession) IsAuthenticating() *observable.Value[bool] { return f.isAuthenticating }
func (f *fakeSession) AccessToken() *observable.Value[string]    { return f.accessToken }
func (f *fakeSession) Profile() *observable.Value[*domainauth.UserProfile] {
	return f.profile
}

func (f *fakeSession) CompleteRedirect() <-chan struct{} {
	f.redirects.Add(1)
	ch := make(chan struct{})
	if f.hang {
		return ch
	}
	go func() {
		if f.onComplete != nil {
			f.onComplete()
		}
		close(ch)
	}()
	return ch
}

func (f *fakeSession) Login()                { f.logins.Add(1) }
func (f *fakeSession) Logout()               { f.logouts.Add(1) }
func (f *fakeSession) Done() <-chan struct{} { return f.done }

func (f *fakeSession) close() {
	f.closeOnce.Do(func() {
		close(f.done)
		f.isLoggedIn.Close()
		f.loginInProgress.Close()
		f.isAuthenticating.Close()
		f.accessToken.Close()
		f.profile.Close()
	})
}

type testEnv struct {
	session *fakeSession
	router  *navigation.Router
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate func(*RouterOptions)) *testEnv {
	t.Helper()
	session := newFakeSession()
	router := navigation.NewRouter(domainauth.Location{Path: "/"}, nil)
	opts := RouterOptions{
		Session:           session,
		Navigator:         router,
		HomePath:          "/",
		CallbackTimeout:   time.Second,
		HeartbeatInterval: time.Hour,
	}
	if mutate != nil {
		mutate(&opts)
	}
	t.Cleanup(session.close)
	return &testEnv{session: session, router: router, handler: NewRouter(opts)}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}
