package ports

// Package ports defines interfaces (hexagonal ports) for the auth session.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

// IdentityProvider is the identity-provider capability the session consumes.
// Account reads are served from the provider's in-memory cache and never block.
type IdentityProvider interface {
	// ActiveAccount returns the account the provider treats as active, or nil.
	ActiveAccount() *domainauth.Account
	// AllAccounts returns every cached account in provider order.
	AllAccounts() []domainauth.Account
	// SetActiveAccount marks acct as active; nil clears the pointer.
	SetActiveAccount(acct *domainauth.Account)

	// HandleRedirect completes a pending redirect. It returns nil, nil when
	// no redirect response is pending.
	HandleRedirect(ctx context.Context) (*domainauth.AuthResult, error)
	// LoginRedirect starts a redirect login. It fails with
	// domainauth.ErrInteractionInProgress if another interaction is running.
	LoginRedirect(ctx context.Context) error

	AcquireTokenSilent(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error)
	AcquireTokenInteractive(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error)

	// ClearAccountCache removes one account and its tokens from the cache.
	ClearAccountCache(ctx context.Context, req domainauth.ClearCacheRequest) error

	// InteractionStatus streams status changes, starting with the current
	// status, until ctx is done.
	InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus
	// Events streams auth events in emission order until ctx is done.
	Events(ctx context.Context) <-chan domainauth.Event
}

// Navigator exposes the presentation layer's router.
type Navigator interface {
	Location() domainauth.Location
	Navigate(ctx context.Context, path string) error
	// NavigateExternal leaves the application, e.g. towards the identity provider.
	NavigateExternal(ctx context.Context, rawURL string) error
}

// PhotoFetcher loads the signed-in user's profile photo.
type PhotoFetcher interface {
	// FetchPhoto returns a URL (typically a data: URL) for the photo.
	FetchPhoto(ctx context.Context, accessToken string) (string, error)
}
