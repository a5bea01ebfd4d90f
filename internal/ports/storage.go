package ports

import (
	"context"
	"time"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

// SessionStorage is a session-scoped string key-value store. Values survive a
// full navigation round trip but not a new browser session. The tier is
// shared, so callers must only touch their own keys.
type SessionStorage interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Taker is implemented by storages that can read and delete a key atomically.
type Taker interface {
	Take(ctx context.Context, key string) (string, bool, error)
}

// CachedAccount is an account with the token material the provider keeps for it.
type CachedAccount struct {
	Account      domainauth.Account `json:"account"`
	IDToken      string             `json:"id_token,omitempty"`
	AccessToken  string             `json:"access_token,omitempty"`
	RefreshToken string             `json:"refresh_token,omitempty"`
	Scopes       []string           `json:"scopes,omitempty"`
	ExpiresAt    time.Time          `json:"expires_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// AccountStore is the durable account cache behind a provider. Implementations
// return accounts in insertion order.
type AccountStore interface {
	List(ctx context.Context) ([]CachedAccount, error)
	Save(ctx context.Context, acct CachedAccount) error
	Delete(ctx context.Context, homeAccountID string) error
}
