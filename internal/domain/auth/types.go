package auth

// Package auth contains domain-level types and pure policies for the browser
// authentication session. It is pure and free of framework/adapter concerns.

import "time"

// Claims holds the decoded ID token claims of an account.
// Values are JSON scalars, arrays ([]any) or objects (map[string]any).
type Claims map[string]any

// String returns the claim value when it is a string, or "" otherwise.
func (c Claims) String(name string) string {
	if c == nil {
		return ""
	}
	s, _ := c[name].(string)
	return s
}

// Account is a signed-in identity as cached by the identity provider.
// The session core only reads and selects accounts; it never constructs one.
type Account struct {
	HomeAccountID string `json:"home_account_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Claims        Claims `json:"claims,omitempty"`
}

// SameAs reports whether a and b refer to the same cached account.
// Two nil accounts are the same; a nil and a non-nil account are not.
func (a *Account) SameAs(b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.HomeAccountID == b.HomeAccountID
}

// SessionState is a point-in-time snapshot of the session flags.
type SessionState struct {
	IsLoggedIn       bool `json:"is_logged_in"`
	LoginInProgress  bool `json:"login_in_progress"`
	IsAuthenticating bool `json:"is_authenticating"`
}

// InteractionStatus is the coarse interaction state reported by the provider.
type InteractionStatus string

const (
	InteractionNone           InteractionStatus = "none"
	InteractionLogin          InteractionStatus = "login"
	InteractionLogout         InteractionStatus = "logout"
	InteractionAcquireToken   InteractionStatus = "acquireToken"
	InteractionHandleRedirect InteractionStatus = "handleRedirect"
	InteractionStartup        InteractionStatus = "startup"
)

// Observed reports whether the session reacts to this status.
// Only None and Login drive the loginInProgress flag.
func (s InteractionStatus) Observed() bool {
	return s == InteractionNone || s == InteractionLogin
}

// EventType tags messages on the provider's auth event stream.
type EventType string

const (
	EventLoginSuccess        EventType = "LOGIN_SUCCESS"
	EventLogoutSuccess       EventType = "LOGOUT_SUCCESS"
	EventAcquireTokenSuccess EventType = "ACQUIRE_TOKEN_SUCCESS"
	EventLoginFailure        EventType = "LOGIN_FAILURE"
	EventAcquireTokenFailure EventType = "ACQUIRE_TOKEN_FAILURE"
)

// Event is a message on the provider's auth event stream.
type Event struct {
	Type    EventType
	Account *Account
	Err     error
}

// AuthResult is returned by redirect completion and token acquisition.
type AuthResult struct {
	Account     Account
	AccessToken string
	IDToken     string
	Scopes      []string
	ExpiresOn   time.Time
}

// TokenRequest describes a token acquisition.
// Account is ignored by interactive acquisition.
type TokenRequest struct {
	Scopes  []string
	Account *Account
}

// ClearCacheRequest describes the removal of one account from the provider cache.
type ClearCacheRequest struct {
	Account       Account
	CorrelationID string
}

// Location is the current navigation location of the presentation layer.
type Location struct {
	Path  string
	Query string
}

// String returns the path followed by the query string, if any.
func (l Location) String() string {
	if l.Query == "" {
		return l.Path
	}
	if l.Query[0] == '?' {
		return l.Path + l.Query
	}
	return l.Path + "?" + l.Query
}

// UserProfile is the display projection of the active account.
type UserProfile struct {
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	JobTitle    string   `json:"job_title"`
	Roles       []string `json:"roles"`
	Claims      Claims   `json:"claims,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
}

// ClaimEntry is one display row of an account's claims.
type ClaimEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
