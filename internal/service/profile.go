package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// DefaultPhotoScopes are requested for the profile photo token.
var DefaultPhotoScopes = []string{"User.Read"}

// ClaimEvaluator evaluates claim path expressions.
type ClaimEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathClaimEvaluator implements ClaimEvaluator using go-jmespath.
type jmespathClaimEvaluator struct{}

func (j jmespathClaimEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathClaimEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// TokenSource acquires access tokens for an account.
type TokenSource interface {
	Acquire(ctx context.Context, account *domainauth.Account, scopes []string) (string, error)
}

// ProfileCacheOptions groups dependencies for ProfileCache.
type ProfileCacheOptions struct {
	Tokens      TokenSource           // Required when Photos is set
	Photos      ports.PhotoFetcher    // Optional; nil disables photos
	PhotoScopes []string              // Optional; defaults to DefaultPhotoScopes
	ClaimPaths  *domainauth.ClaimPaths // Optional; defaults to DefaultClaimPaths
	Evaluator   ClaimEvaluator        // Optional; defaults to JMESPath
	Logger      *slog.Logger          // Optional
}

// ProfileCache derives the display profile of the active account and
// decorates it with a photo fetched in the background.
type ProfileCache struct {
	tokens      TokenSource
	photos      ports.PhotoFetcher
	photoScopes []string
	paths       domainauth.ClaimPaths
	eval        ClaimEvaluator
	logger      *slog.Logger

	profile *observable.Value[*domainauth.UserProfile]

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProfileCache constructs a ProfileCache. Claim expressions are validated up front.
func NewProfileCache(opts ProfileCacheOptions) (*ProfileCache, error) {
	if opts.Photos != nil && opts.Tokens == nil {
		return nil, errors.New("Tokens is required when Photos is set")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	eval := opts.Evaluator
	if eval == nil {
		eval = jmespathClaimEvaluator{}
	}
	paths := domainauth.DefaultClaimPaths()
	if opts.ClaimPaths != nil {
		paths = *opts.ClaimPaths
	}
	for _, expr := range []string{paths.FirstName, paths.LastName, paths.JobTitle, paths.Roles} {
		if err := eval.Validate(expr); err != nil {
			return nil, errors.Join(errors.New("invalid claim expression "+expr), err)
		}
	}
	scopes := opts.PhotoScopes
	if len(scopes) == 0 {
		scopes = DefaultPhotoScopes
	}

	return &ProfileCache{
		tokens:      opts.Tokens,
		photos:      opts.Photos,
		photoScopes: scopes,
		paths:       paths,
		eval:        eval,
		logger:      logger.With("component", "profile_cache"),
		profile:     observable.NewValue[*domainauth.UserProfile](nil),
	}, nil
}

// Profile exposes the published profile; nil means no profile.
func (c *ProfileCache) Profile() *observable.Value[*domainauth.UserProfile] {
	return c.profile
}

// Current returns a copy of the published profile, or nil.
func (c *ProfileCache) Current() *domainauth.UserProfile {
	p := c.profile.Get()
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Refresh publishes the profile of account immediately and starts a
// background photo fetch. A nil account clears the profile.
func (c *ProfileCache) Refresh(ctx context.Context, account *domainauth.Account) {
	if account == nil {
		c.Clear()
		return
	}
	profile := domainauth.ProfileFromAccount(*account, c.paths, c.eval)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.profile.Set(&profile)
	if c.photos == nil {
		c.mu.Unlock()
		return
	}
	photoCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	acct := *account
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.loadPhoto(photoCtx, gen, &acct)
	}()
}

func (c *ProfileCache) loadPhoto(ctx context.Context, gen uint64, account *domainauth.Account) {
	token, err := c.tokens.Acquire(ctx, account, c.photoScopes)
	if err != nil {
		c.logger.WarnContext(ctx, "profile photo token unavailable", "error", err, "account", account.Username)
		return
	}
	url, err := c.photos.FetchPhoto(ctx, token)
	if err != nil {
		c.logger.WarnContext(ctx, "profile photo fetch failed", "error", err, "account", account.Username)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.profile.Get()
	if gen != c.gen || cur == nil {
		c.logger.DebugContext(ctx, "discarding stale profile photo", "account", account.Username)
		return
	}
	next := *cur
	next.PhotoURL = url
	c.profile.Set(&next)
}

// Clear publishes no profile and invalidates any in-flight photo fetch.
func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.profile.Set(nil)
}

// Claims lists the account's claims for display.
func (c *ProfileCache) Claims(account *domainauth.Account) []domainauth.ClaimEntry {
	if account == nil {
		return nil
	}
	return domainauth.ClaimEntries(account.Claims)
}

// Close cancels any photo fetch, waits for it and closes the observable.
func (c *ProfileCache) Close() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.profile.Close()
}

// wait blocks until background photo fetches have finished.
func (c *ProfileCache) wait() {
	c.wg.Wait()
}
