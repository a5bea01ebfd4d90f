package devauth

// Package devauth provides a simple, config-driven IdentityProvider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
)

const devTenant = "dev"

// Config controls the dev identity provider behavior.
// UserID, Email and Navigator are required.
type Config struct {
	UserID          string
	Email           string
	Name            string
	JobTitle        string
	Groups          []string
	SessionDuration time.Duration // default 8h when zero
	TokenTTL        time.Duration // default 1h when zero
	CallbackPath    string        // default /auth/callback
	Secret          []byte        // HS256 signing key, random when empty

	Navigator ports.Navigator
	Logger    *slog.Logger
}

// Provider implements ports.IdentityProvider for local development.
// LoginRedirect short-circuits the OAuth flow by navigating straight to our
// own callback with a locally generated state. Tokens are HS256 JWTs for the
// configured identity.
type Provider struct {
	account  domainauth.Account
	secret   []byte
	tokenTTL time.Duration
	session  time.Duration
	callback string
	nav      ports.Navigator
	logger   *slog.Logger

	mu       sync.Mutex
	status   domainauth.InteractionStatus
	pending  string
	accounts []domainauth.Account
	active   *domainauth.Account

	statuses *observable.Broadcaster[domainauth.InteractionStatus]
	events   *observable.Broadcaster[domainauth.Event]
}

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Navigator == nil {
		return nil, errors.New("dev auth: Navigator is required")
	}
	session := cfg.SessionDuration
	if session == 0 {
		session = 8 * time.Hour
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	callback := cfg.CallbackPath
	if callback == "" {
		callback = "/auth/callback"
	}
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("dev auth: generate secret: %w", err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = cfg.UserID
	}
	first, last, _ := strings.Cut(name, " ")

	roles := make([]any, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		roles = append(roles, g)
	}
	account := domainauth.Account{
		HomeAccountID: cfg.UserID + "." + devTenant,
		Username:      cfg.Email,
		DisplayName:   name,
		Claims: domainauth.Claims{
			"oid":                cfg.UserID,
			"tid":                devTenant,
			"sub":                cfg.UserID,
			"preferred_username": cfg.Email,
			"email":              cfg.Email,
			"name":               name,
			"given_name":         first,
			"family_name":        last,
			"jobTitle":           cfg.JobTitle,
			"roles":              roles,
		},
	}

	return &Provider{
		account:  account,
		secret:   secret,
		tokenTTL: ttl,
		session:  session,
		callback: callback,
		nav:      cfg.Navigator,
		logger:   logger.With("component", "dev_auth"),
		status:   domainauth.InteractionNone,
		statuses: observable.NewReplayBroadcaster(domainauth.InteractionNone),
		events:   observable.NewBroadcaster[domainauth.Event](),
	}, nil
}

func (p *Provider) ActiveAccount() *domainauth.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	acct := *p.active
	return &acct
}

func (p *Provider) AllAccounts() []domainauth.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domainauth.Account(nil), p.accounts...)
}

func (p *Provider) SetActiveAccount(acct *domainauth.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acct == nil {
		p.active = nil
		return
	}
	cp := *acct
	p.active = &cp
}

// LoginRedirect navigates to the local callback with a fresh state.
func (p *Provider) LoginRedirect(ctx context.Context) error {
	state, err := randomString(24)
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}
	if err := p.begin(domainauth.InteractionLogin); err != nil {
		return err
	}
	p.mu.Lock()
	p.pending = state
	p.mu.Unlock()

	// Our standard handler expects GET /auth/callback?code=...&state=...
	target := p.callback + "?" + url.Values{"code": {"dev"}, "state": {state}}.Encode()
	if err := p.nav.NavigateExternal(ctx, target); err != nil {
		p.end()
		return fmt.Errorf("navigate to callback: %w", err)
	}
	return nil
}

// HandleRedirect signs in the configured identity when the location carries
// the pending state.
func (p *Provider) HandleRedirect(ctx context.Context) (*domainauth.AuthResult, error) {
	q, _ := url.ParseQuery(strings.TrimPrefix(p.nav.Location().Query, "?"))
	p.mu.Lock()
	pending := p.pending
	p.pending = ""
	p.mu.Unlock()

	if q.Get("code") == "" || pending == "" {
		p.end()
		return nil, nil
	}
	defer p.end()
	if q.Get("state") != pending {
		err := errors.New("state mismatch")
		p.events.Publish(domainauth.Event{Type: domainauth.EventLoginFailure, Err: err})
		return nil, err
	}

	res, err := p.signIn(nil)
	if err != nil {
		return nil, err
	}
	acct := res.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventLoginSuccess, Account: &acct})
	p.logger.InfoContext(ctx, "dev login completed", "account", acct.Username)
	return &res, nil
}

// AcquireTokenSilent mints a token for a signed-in account.
func (p *Provider) AcquireTokenSilent(_ context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if req.Account == nil {
		return domainauth.AuthResult{}, domainauth.ErrNoAccount
	}
	if !p.known(req.Account.HomeAccountID) {
		return domainauth.AuthResult{}, fmt.Errorf("%w: account not signed in", domainauth.ErrInteractionRequired)
	}
	return p.result(p.account, req.Scopes)
}

// AcquireTokenInteractive signs in the configured identity without a prompt.
func (p *Provider) AcquireTokenInteractive(_ context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if err := p.begin(domainauth.InteractionAcquireToken); err != nil {
		return domainauth.AuthResult{}, err
	}
	defer p.end()
	res, err := p.signIn(req.Scopes)
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	acct := res.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventAcquireTokenSuccess, Account: &acct})
	return res, nil
}

func (p *Provider) ClearAccountCache(ctx context.Context, req domainauth.ClearCacheRequest) error {
	p.mu.Lock()
	kept := p.accounts[:0]
	for _, a := range p.accounts {
		if a.HomeAccountID != req.Account.HomeAccountID {
			kept = append(kept, a)
		}
	}
	p.accounts = kept
	if p.active != nil && p.active.HomeAccountID == req.Account.HomeAccountID {
		p.active = nil
	}
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "dev account cleared", "account", req.Account.Username, "correlation_id", req.CorrelationID)
	acct := req.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventLogoutSuccess, Account: &acct})
	return nil
}

func (p *Provider) InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus {
	return p.statuses.Subscribe(ctx)
}

func (p *Provider) Events(ctx context.Context) <-chan domainauth.Event {
	return p.events.Subscribe(ctx)
}

// VerifyToken validates a token minted by this provider and returns its claims.
func (p *Provider) VerifyToken(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify dev token: %w", err)
	}
	return claims, nil
}

func (p *Provider) signIn(scopes []string) (domainauth.AuthResult, error) {
	p.mu.Lock()
	if !p.knownLocked(p.account.HomeAccountID) {
		p.accounts = append(p.accounts, p.account)
	}
	p.mu.Unlock()
	return p.result(p.account, scopes)
}

func (p *Provider) result(acct domainauth.Account, scopes []string) (domainauth.AuthResult, error) {
	now := time.Now()
	expires := now.Add(p.tokenTTL)

	idClaims := jwt.MapClaims{
		"aud": "dev",
		"iat": now.Unix(),
		"exp": now.Add(p.session).Unix(),
	}
	for k, v := range acct.Claims {
		idClaims[k] = v
	}
	idToken, err := p.sign(idClaims)
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	access, err := p.sign(jwt.MapClaims{
		"sub": acct.Claims.String("sub"),
		"scp": strings.Join(scopes, " "),
		"iat": now.Unix(),
		"exp": expires.Unix(),
	})
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	return domainauth.AuthResult{
		Account:     acct,
		AccessToken: access,
		IDToken:     idToken,
		Scopes:      append([]string(nil), scopes...),
		ExpiresOn:   expires,
	}, nil
}

func (p *Provider) sign(claims jwt.MapClaims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign dev token: %w", err)
	}
	return s, nil
}

func (p *Provider) known(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.knownLocked(id)
}

func (p *Provider) knownLocked(id string) bool {
	for _, a := range p.accounts {
		if a.HomeAccountID == id {
			return true
		}
	}
	return false
}

func (p *Provider) begin(next domainauth.InteractionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != domainauth.InteractionNone {
		return fmt.Errorf("%w: %s", domainauth.ErrInteractionInProgress, p.status)
	}
	p.status = next
	p.statuses.Publish(next)
	return nil
}

func (p *Provider) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == domainauth.InteractionNone {
		return
	}
	p.status = domainauth.InteractionNone
	p.statuses.Publish(domainauth.InteractionNone)
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
