package oidc

// Package oidc provides the OpenID Connect identity provider adapter.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// DevicePrompt shows the device authorization user code to the user.
type DevicePrompt func(ctx context.Context, resp *oauth2.DeviceAuthResponse) error

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string // Optional, public clients rely on PKCE
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to NewHTTPClient(30s)

	Storage   ports.SessionStorage // Required, holds the pending login request
	Accounts  ports.AccountStore   // Required
	Navigator ports.Navigator      // Required

	DevicePrompt DevicePrompt     // Optional, defaults to logging the user code
	Logger       *slog.Logger     // Optional
	Now          func() time.Time // Optional
}

func (c ProviderConfig) validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("client ID is required")
	case c.RedirectURL == "":
		return errors.New("redirect URL is required")
	case c.Storage == nil:
		return errors.New("storage is required")
	case c.Accounts == nil:
		return errors.New("account store is required")
	case c.Navigator == nil:
		return errors.New("navigator is required")
	}
	return nil
}

// Keys of the pending login request in session storage.
const (
	requestStateKey    = "oidc.request.state"
	requestNonceKey    = "oidc.request.nonce"
	requestVerifierKey = "oidc.request.verifier"
)

// Cached access tokens expiring within this window are refreshed.
const expirySkew = 5 * time.Minute

// defaultScopes are always requested so the provider gets an ID token and a
// refresh token.
var defaultScopes = []string{gooidc.ScopeOpenID, "profile", gooidc.ScopeOfflineAccess}

// Provider implements ports.IdentityProvider with the authorization code flow
// (PKCE) for login and the device authorization grant for interactive token
// acquisition. Account reads are served from memory.
type Provider struct {
	config     *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client

	storage  ports.SessionStorage
	accounts ports.AccountStore
	nav      ports.Navigator
	prompt   DevicePrompt
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	status domainauth.InteractionStatus
	cache  []ports.CachedAccount
	active *domainauth.Account

	statuses *observable.Broadcaster[domainauth.InteractionStatus]
	events   *observable.Broadcaster[domainauth.Event]
}

// NewProvider discovers the identity provider at cfg.DiscoveryURL and loads
// the cached accounts.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient(30 * time.Second)
	}

	dctx := context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(dctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	endpoint := op.Endpoint()
	if endpoint.DeviceAuthURL == "" {
		var extra struct {
			DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		}
		if claimsErr := op.Claims(&extra); claimsErr == nil {
			endpoint.DeviceAuthURL = extra.DeviceAuthorizationEndpoint
		}
	}

	return newProvider(ctx, cfg, endpoint, op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}))
}

func newProvider(
	ctx context.Context,
	cfg ProviderConfig,
	endpoint oauth2.Endpoint,
	verifier *gooidc.IDTokenVerifier,
) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient(30 * time.Second)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	p := &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       mergeScopes(defaultScopes, strings.Fields(cfg.Scope)),
			Endpoint:     endpoint,
		},
		verifier:   verifier,
		httpClient: cfg.HTTPClient,
		storage:    cfg.Storage,
		accounts:   cfg.Accounts,
		nav:        cfg.Navigator,
		prompt:     cfg.DevicePrompt,
		logger:     logger.With("component", "oidc_provider"),
		now:        now,
		status:     domainauth.InteractionNone,
		statuses:   observable.NewReplayBroadcaster(domainauth.InteractionNone),
		events:     observable.NewBroadcaster[domainauth.Event](),
	}
	if p.prompt == nil {
		p.prompt = p.logPrompt
	}
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// NewHTTPClient returns an HTTP client whose cookie jar is scoped by the
// public suffix list.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{Timeout: timeout, Jar: jar}
}

func (p *Provider) load(ctx context.Context) error {
	cached, err := p.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("load cached accounts: %w", err)
	}
	for i := range cached {
		if cached[i].Account.Claims != nil || cached[i].IDToken == "" {
			continue
		}
		claims, decodeErr := decodeClaims(cached[i].IDToken)
		if decodeErr != nil {
			p.logger.WarnContext(ctx, "cached id token unreadable", "account", cached[i].Account.Username, "error", decodeErr)
			continue
		}
		cached[i].Account.Claims = claims
	}
	p.mu.Lock()
	p.cache = cached
	p.mu.Unlock()
	p.logger.DebugContext(ctx, "loaded cached accounts", "count", len(cached))
	return nil
}

// ActiveAccount returns a copy of the active account, or nil.
func (p *Provider) ActiveAccount() *domainauth.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	acct := *p.active
	return &acct
}

// AllAccounts returns the cached accounts in insertion order.
func (p *Provider) AllAccounts() []domainauth.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domainauth.Account, 0, len(p.cache))
	for _, c := range p.cache {
		out = append(out, c.Account)
	}
	return out
}

// SetActiveAccount sets or clears the active account pointer.
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

// ClearAccountCache removes the account and its tokens from memory and from
// the account store.
func (p *Provider) ClearAccountCache(ctx context.Context, req domainauth.ClearCacheRequest) error {
	id := req.Account.HomeAccountID
	if err := p.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete cached account: %w", err)
	}

	p.mu.Lock()
	kept := p.cache[:0]
	for _, c := range p.cache {
		if c.Account.HomeAccountID != id {
			kept = append(kept, c)
		}
	}
	p.cache = kept
	if p.active != nil && p.active.HomeAccountID == id {
		p.active = nil
	}
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "cleared cached account",
		"account", req.Account.Username, "correlation_id", req.CorrelationID)
	acct := req.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventLogoutSuccess, Account: &acct})
	return nil
}

// InteractionStatus streams status changes starting with the current status.
func (p *Provider) InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus {
	return p.statuses.Subscribe(ctx)
}

// Events streams auth events until ctx is done.
func (p *Provider) Events(ctx context.Context) <-chan domainauth.Event {
	return p.events.Subscribe(ctx)
}

// Status returns the current interaction status.
func (p *Provider) Status() domainauth.InteractionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Provider) beginInteraction(next domainauth.InteractionStatus, allowed ...domainauth.InteractionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != domainauth.InteractionNone && !containsStatus(allowed, p.status) {
		return fmt.Errorf("%w: %s", domainauth.ErrInteractionInProgress, p.status)
	}
	p.status = next
	p.statuses.Publish(next)
	return nil
}

func (p *Provider) endInteraction() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == domainauth.InteractionNone {
		return
	}
	p.status = domainauth.InteractionNone
	p.statuses.Publish(domainauth.InteractionNone)
}

func containsStatus(list []domainauth.InteractionStatus, s domainauth.InteractionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *Provider) lookup(homeAccountID string) (ports.CachedAccount, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.cache {
		if c.Account.HomeAccountID == homeAccountID {
			return c, true
		}
	}
	return ports.CachedAccount{}, false
}

// save persists entry and upserts it into the in-memory cache, keeping the
// position of an existing account.
func (p *Provider) save(ctx context.Context, entry ports.CachedAccount) error {
	entry.UpdatedAt = p.now()
	if err := p.accounts.Save(ctx, entry); err != nil {
		return fmt.Errorf("save cached account: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cache {
		if p.cache[i].Account.HomeAccountID == entry.Account.HomeAccountID {
			p.cache[i] = entry
			return nil
		}
	}
	p.cache = append(p.cache, entry)
	return nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) logPrompt(ctx context.Context, resp *oauth2.DeviceAuthResponse) error {
	p.logger.WarnContext(ctx, "sign in required",
		"verification_uri", resp.VerificationURI, "user_code", resp.UserCode)
	return nil
}

// mergeScopes returns base followed by the scopes of extra not already present.
func mergeScopes(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
