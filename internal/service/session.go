package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observability/metrics"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// ErrSessionStarted is returned by Start when called more than once.
var ErrSessionStarted = errors.New("session manager already started")

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Provider  ports.IdentityProvider // Required
	Navigator ports.Navigator        // Required
	Tracker   *RedirectTracker       // Required

	Reconciler *AccountReconciler // Optional; built from Provider
	Tokens     *TokenAcquirer     // Optional; built from Provider
	Profiles   *ProfileCache      // Optional; claims only, no photo. Closed by Close.

	// Scopes requested for the session access token. Empty disables acquisition.
	Scopes   []string
	HomePath string // Optional; defaults to "/"

	NewCorrelationID func() string // Optional; defaults to a random UUID
	Logger           *slog.Logger  // Optional
	Metrics          statsd.Sink   // Optional
}

// SessionManager owns the authentication session: the logged-in,
// login-in-progress and authenticating flags, the canonical account, its
// access token and its profile.
//
// All state transitions run on a single event loop goroutine. Provider calls
// that block run on worker goroutines and post their continuation back to the
// loop, so Login and Logout never block the caller.
type SessionManager struct {
	provider   ports.IdentityProvider
	navigator  ports.Navigator
	tracker    *RedirectTracker
	reconciler *AccountReconciler
	tokens     *TokenAcquirer
	profiles   *ProfileCache

	scopes   []string
	homePath string
	newID    func() string
	logger   *slog.Logger
	metrics  statsd.Sink

	isLoggedIn       *observable.Value[bool]
	loginInProgress  *observable.Value[bool]
	isAuthenticating *observable.Value[bool]
	accessToken      *observable.Value[string]
	account          *observable.Value[*domainauth.Account]

	// Loop-owned.
	tokenGen uint64
	// redirectQueued is set when a completion is requested while one runs;
	// queuedWaiters are released after the follow-up pass.
	redirectQueued bool
	queuedWaiters  []chan struct{}

	loop     *eventLoop
	ctx      context.Context
	cancel   context.CancelFunc
	started  atomic.Bool
	closed   atomic.Bool
	inflight atomic.Int64
	handled  atomic.Int64 // provider stream items applied on the loop
	wg       sync.WaitGroup
}

// NewSessionManager constructs a SessionManager. Call Start to begin
// observing the provider.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Provider == nil {
		return nil, errors.New("Provider is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("Navigator is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("Tracker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reconciler := opts.Reconciler
	if reconciler == nil {
		r, err := NewAccountReconciler(AccountReconcilerOptions{
			Provider: opts.Provider,
			Logger:   logger,
			Metrics:  opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		reconciler = r
	}

	tokens := opts.Tokens
	if tokens == nil {
		t, err := NewTokenAcquirer(TokenAcquirerOptions{
			Provider: opts.Provider,
			Logger:   logger,
			Metrics:  opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		tokens = t
	}

	profiles := opts.Profiles
	if profiles == nil {
		p, err := NewProfileCache(ProfileCacheOptions{Logger: logger})
		if err != nil {
			return nil, err
		}
		profiles = p
	}

	homePath := opts.HomePath
	if homePath == "" {
		homePath = "/"
	}
	newID := opts.NewCorrelationID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		provider:         opts.Provider,
		navigator:        opts.Navigator,
		tracker:          opts.Tracker,
		reconciler:       reconciler,
		tokens:           tokens,
		profiles:         profiles,
		scopes:           append([]string(nil), opts.Scopes...),
		homePath:         homePath,
		newID:            newID,
		logger:           logger.With("component", "session_manager"),
		metrics:          opts.Metrics,
		isLoggedIn:       observable.NewValue(false),
		loginInProgress:  observable.NewValue(false),
		isAuthenticating: observable.NewValue(false),
		accessToken:      observable.NewValue(""),
		account:          observable.NewValue[*domainauth.Account](nil),
		loop:             newEventLoop(),
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

// IsLoggedIn is true while a canonical account exists.
func (m *SessionManager) IsLoggedIn() *observable.Value[bool] { return m.isLoggedIn }

// LoginInProgress is true while a login or logout owns the session.
func (m *SessionManager) LoginInProgress() *observable.Value[bool] { return m.loginInProgress }

// IsAuthenticating is true while a redirect response is being processed.
func (m *SessionManager) IsAuthenticating() *observable.Value[bool] { return m.isAuthenticating }

// AccessToken holds the token for the canonical account; "" means none.
func (m *SessionManager) AccessToken() *observable.Value[string] { return m.accessToken }

// Profile holds the profile of the canonical account; nil means none.
func (m *SessionManager) Profile() *observable.Value[*domainauth.UserProfile] {
	return m.profiles.Profile()
}

// Account returns the canonical account, or nil.
func (m *SessionManager) Account() *domainauth.Account {
	acct := m.account.Get()
	if acct == nil {
		return nil
	}
	cp := *acct
	return &cp
}

// Claims lists the canonical account's claims for display.
func (m *SessionManager) Claims() []domainauth.ClaimEntry {
	return m.profiles.Claims(m.account.Get())
}

// State returns a snapshot of the session flags.
func (m *SessionManager) State() domainauth.SessionState {
	return domainauth.SessionState{
		IsLoggedIn:       m.isLoggedIn.Get(),
		LoginInProgress:  m.loginInProgress.Get(),
		IsAuthenticating: m.isAuthenticating.Get(),
	}
}

// Start subscribes to the provider streams and completes any pending
// redirect. The session stops when ctx is done or Close is called.
func (m *SessionManager) Start(ctx context.Context) error {
	if m.closed.Load() {
		return context.Canceled
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrSessionStarted
	}
	stop := context.AfterFunc(ctx, m.cancel)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-m.ctx.Done()
		stop()
	}()

	forward(m, m.provider.InteractionStatus(m.ctx), m.onStatus)
	forward(m, m.provider.Events(m.ctx), m.onEvent)

	m.CompleteRedirect()
	m.logger.InfoContext(ctx, "session manager started")
	return nil
}

// forward delivers every item of ch to handle on the event loop, in order.
func forward[T any](m *SessionManager, ch <-chan T, handle func(T)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ctx.Done():
				return
			case item, ok := <-ch:
				if !ok {
					return
				}
				m.loop.post(func() {
					handle(item)
					m.handled.Add(1)
				})
			}
		}
	}()
}

// CompleteRedirect processes a pending redirect response, if any. The
// returned channel is closed once the outcome has been applied. A request made
// while another pass runs is served by a follow-up pass, so a location set
// after the running pass read it is not missed.
func (m *SessionManager) CompleteRedirect() <-chan struct{} {
	done := make(chan struct{})
	if !m.loop.post(func() { m.completeRedirect([]chan struct{}{done}) }) {
		close(done)
	}
	return done
}

func (m *SessionManager) completeRedirect(waiters []chan struct{}) {
	if m.isAuthenticating.Get() {
		m.logger.DebugContext(m.ctx, "redirect completion running, queueing another pass")
		m.redirectQueued = true
		m.queuedWaiters = append(m.queuedWaiters, waiters...)
		return
	}
	m.isAuthenticating.Set(true)

	release := func() {
		for _, w := range waiters {
			close(w)
		}
	}
	m.async(release, func(ctx context.Context) func() {
		res, err := m.provider.HandleRedirect(ctx)
		return func() {
			m.isAuthenticating.Set(false)
			m.applyRedirect(res, err)

			if m.redirectQueued {
				queued := m.queuedWaiters
				m.redirectQueued = false
				m.queuedWaiters = nil
				m.completeRedirect(queued)
			}
		}
	})
}

func (m *SessionManager) applyRedirect(res *domainauth.AuthResult, err error) {
	m.reconcile()

	if err != nil {
		m.logger.ErrorContext(m.ctx, "redirect completion failed", "error", err)
		m.emit(metrics.TransitionRedirect, metrics.ResultError, err)
		m.resetRedirectCounter()
		return
	}
	if res == nil {
		return
	}

	m.logger.InfoContext(m.ctx, "redirect completed", "account", res.Account.Username)
	m.emit(metrics.TransitionRedirect, metrics.ResultSuccess, nil)
	target, consumeErr := m.tracker.Consume(m.ctx)
	if consumeErr != nil {
		m.logger.ErrorContext(m.ctx, "failed to read redirect target", "error", consumeErr)
	}
	if target != nil {
		if navErr := m.navigator.Navigate(m.ctx, target.String()); navErr != nil {
			m.logger.ErrorContext(m.ctx, "failed to restore redirect target", "error", navErr)
		}
	}
	m.resetRedirectCounter()
}

func (m *SessionManager) resetRedirectCounter() {
	if err := m.tracker.ResetCounter(m.ctx); err != nil {
		m.logger.ErrorContext(m.ctx, "failed to reset redirect counter", "error", err)
	}
}

func (m *SessionManager) onStatus(status domainauth.InteractionStatus) {
	if !status.Observed() {
		return
	}
	m.loginInProgress.Set(status == domainauth.InteractionLogin)
	m.reconcile()
}

func (m *SessionManager) onEvent(ev domainauth.Event) {
	switch ev.Type {
	case domainauth.EventLoginSuccess, domainauth.EventAcquireTokenSuccess:
		if ev.Account == nil {
			return
		}
		m.logger.InfoContext(m.ctx, "auth event", "type", ev.Type, "account", ev.Account.Username)
		m.provider.SetActiveAccount(ev.Account)
		m.reconcile()
	case domainauth.EventLogoutSuccess:
		m.logger.InfoContext(m.ctx, "logout succeeded")
	case domainauth.EventLoginFailure, domainauth.EventAcquireTokenFailure:
		m.logger.WarnContext(m.ctx, "auth event failure", "type", ev.Type, "error", ev.Err)
	}
}

// reconcile applies one reconciliation pass. Runs on the loop.
func (m *SessionManager) reconcile() {
	d := m.reconciler.Reconcile(m.ctx)
	m.isLoggedIn.Set(d.IsLoggedIn)
	m.applyAccount(d.Account)
}

// applyAccount refreshes the profile and token when the canonical account
// changes. Runs on the loop.
func (m *SessionManager) applyAccount(acct *domainauth.Account) {
	if m.account.Get().SameAs(acct) {
		return
	}
	m.tokenGen++
	m.profiles.Clear()
	m.accessToken.Set("")

	if acct == nil {
		m.account.Set(nil)
		return
	}
	cp := *acct
	m.account.Set(&cp)
	m.profiles.Refresh(m.ctx, &cp)
	m.refreshToken(&cp)
}

func (m *SessionManager) refreshToken(acct *domainauth.Account) {
	if len(m.scopes) == 0 {
		return
	}
	gen := m.tokenGen
	m.async(nil, func(ctx context.Context) func() {
		token, err := m.tokens.Acquire(ctx, acct, m.scopes)
		return func() {
			if gen != m.tokenGen {
				m.logger.DebugContext(m.ctx, "discarding token for superseded account", "account", acct.Username)
				return
			}
			if err != nil {
				m.logger.WarnContext(m.ctx, "access token unavailable", "error", err, "account", acct.Username)
				m.accessToken.Set("")
				return
			}
			m.accessToken.Set(token)
		}
	})
}

// Login starts a redirect login unless one is already in progress.
func (m *SessionManager) Login() {
	m.loop.post(m.login)
}

func (m *SessionManager) login() {
	if m.loginInProgress.Get() {
		m.logger.WarnContext(m.ctx, "login already in progress, ignoring login request")
		m.emit(metrics.TransitionLogin, metrics.ResultNoop, nil)
		return
	}
	m.loginInProgress.Set(true)

	if loc := m.navigator.Location(); loc.Path != m.homePath {
		if err := m.tracker.Track(m.ctx, loc); err != nil {
			m.logger.ErrorContext(m.ctx, "failed to store redirect target", "error", err)
		}
	}

	m.async(nil, func(ctx context.Context) func() {
		err := m.provider.LoginRedirect(ctx)
		return func() {
			if err == nil {
				m.emit(metrics.TransitionLogin, metrics.ResultSuccess, nil)
				return
			}
			if errors.Is(err, domainauth.ErrInteractionInProgress) {
				m.logger.WarnContext(m.ctx, "login redirect refused, interaction in progress", "error", err)
			} else {
				m.logger.ErrorContext(m.ctx, "login redirect failed", "error", err)
			}
			m.emit(metrics.TransitionLogin, metrics.ResultError, err)
			m.loginInProgress.Set(false)
		}
	})
}

// Logout clears every cached account and returns to the home location.
func (m *SessionManager) Logout() {
	m.loop.post(m.logout)
}

func (m *SessionManager) logout() {
	if m.loginInProgress.Get() {
		m.logger.WarnContext(m.ctx, "login in progress, ignoring logout request")
		m.emit(metrics.TransitionLogout, metrics.ResultNoop, nil)
		return
	}
	m.loginInProgress.Set(true)

	if err := m.tracker.Clear(m.ctx); err != nil {
		m.logger.ErrorContext(m.ctx, "failed to clear redirect target", "error", err)
	}
	accounts := m.provider.AllAccounts()
	m.provider.SetActiveAccount(nil)

	m.async(nil, func(ctx context.Context) func() {
		var errs []error
		for _, acct := range accounts {
			req := domainauth.ClearCacheRequest{Account: acct, CorrelationID: m.newID()}
			if err := m.provider.ClearAccountCache(ctx, req); err != nil {
				m.logger.ErrorContext(ctx, "failed to clear account cache",
					"error", err, "account", acct.Username, "correlation_id", req.CorrelationID)
				errs = append(errs, err)
			}
		}
		err := errors.Join(errs...)

		return func() {
			defer m.loginInProgress.Set(false)

			m.isLoggedIn.Set(false)
			m.applyAccount(nil)
			m.reconcile()
			if navErr := m.navigator.Navigate(m.ctx, m.homePath); navErr != nil {
				m.logger.ErrorContext(m.ctx, "failed to navigate home after logout", "error", navErr)
			}

			result := metrics.ResultSuccess
			if err != nil {
				result = metrics.ResultError
			}
			m.emit(metrics.TransitionLogout, result, err)
			m.logger.InfoContext(m.ctx, "logout completed", "accounts", len(accounts))
		}
	})
}

// async runs work on a worker goroutine and posts the continuation it
// returns back to the loop. finish, if set, runs after the continuation, or
// off the loop when the loop has already stopped.
func (m *SessionManager) async(finish func(), work func(ctx context.Context) func()) {
	m.inflight.Add(1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		cont := work(m.ctx)
		posted := m.loop.post(func() {
			defer m.inflight.Add(-1)
			if finish != nil {
				defer finish()
			}
			if cont != nil {
				cont()
			}
		})
		if !posted {
			m.inflight.Add(-1)
			if finish != nil {
				finish()
			}
		}
	}()
}

func (m *SessionManager) emit(transition, result string, err error) {
	metrics.EmitSessionTransition(m.metrics, metrics.SessionMetric{
		Transition: transition,
		Result:     result,
		Err:        err,
	})
}

// Close tears down both provider subscriptions, stops the event loop and
// closes the observables. Later commands are dropped.
func (m *SessionManager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.cancel()
	m.loop.stop()
	m.wg.Wait()

	for _, w := range m.queuedWaiters {
		close(w)
	}
	m.queuedWaiters = nil

	m.profiles.Close()
	m.isLoggedIn.Close()
	m.loginInProgress.Close()
	m.isAuthenticating.Close()
	m.accessToken.Close()
	m.account.Close()
}

// Done is closed when the session has been closed or its Start context ended.
func (m *SessionManager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// flush waits until every queued closure has run.
func (m *SessionManager) flush() bool {
	return m.loop.call(func() {})
}

// idle reports whether no worker continuation is pending.
func (m *SessionManager) idle() bool {
	return m.inflight.Load() == 0
}

// handledStreamItems counts provider status and event items applied so far.
func (m *SessionManager) handledStreamItems() int64 {
	return m.handled.Load()
}
