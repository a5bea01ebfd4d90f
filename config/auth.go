package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// DefaultAuthorityHost is the Entra ID login host.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// IdentityConfig identifies the application to the identity provider.
type IdentityConfig struct {
	ClientID string `env:"CLIENT_ID"`
	TenantID string `env:"TENANT_ID" envDefault:"common"`
	// Scopes requested for the session access token.
	Scopes []string `env:"SCOPES" envSeparator:";"`

	AuthorityHost string `env:"AUTHORITY_HOST" envDefault:"https://login.microsoftonline.com"`
	// DiscoveryURL overrides the issuer derived from AuthorityHost and TenantID.
	DiscoveryURL string `env:"DISCOVERY_URL"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	// ClientSecret is only set for confidential clients.
	ClientSecret string `env:"CLIENT_SECRET"`

	// RemoteConfigURL points at a JSON document overlaying ClientID, TenantID and Scopes.
	RemoteConfigURL string `env:"REMOTE_CONFIG_URL"`

	// HTTPTimeout bounds calls to the identity provider.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
}

// Sanitize trims values and drops empty scopes.
func (c *IdentityConfig) Sanitize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.AuthorityHost = strings.TrimRight(strings.TrimSpace(c.AuthorityHost), "/")
	if c.AuthorityHost == "" {
		c.AuthorityHost = DefaultAuthorityHost
	}
	c.DiscoveryURL = strings.TrimSpace(c.DiscoveryURL)
	c.RedirectURL = strings.TrimSpace(c.RedirectURL)
	c.RemoteConfigURL = strings.TrimSpace(c.RemoteConfigURL)
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	c.Scopes = trimList(c.Scopes)
}

// Issuer returns the OpenID issuer used for discovery.
func (c IdentityConfig) Issuer() string {
	if c.DiscoveryURL != "" {
		return c.DiscoveryURL
	}
	tenant := c.TenantID
	if tenant == "" {
		tenant = "common"
	}
	return c.AuthorityHost + "/" + tenant + "/v2.0"
}

// Validate checks the fields required for an OAuth login.
func (c IdentityConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("IDENTITY_CLIENT_ID is required")
	}
	if c.RedirectURL == "" {
		return errors.New("IDENTITY_REDIRECT_URL is required")
	}
	if _, err := url.ParseRequestURI(c.RedirectURL); err != nil {
		return fmt.Errorf("invalid IDENTITY_REDIRECT_URL: %w", err)
	}
	if c.DiscoveryURL == "" && c.TenantID == "" {
		return errors.New("IDENTITY_TENANT_ID or IDENTITY_DISCOVERY_URL is required")
	}
	return nil
}

// RemoteIdentityConfig is the document served at RemoteConfigURL.
type RemoteIdentityConfig struct {
	ClientID string   `json:"clientId"`
	TenantID string   `json:"tenantId"`
	Scopes   []string `json:"scopes"`
}

// Apply overlays the non-empty remote values onto c.
func (c *IdentityConfig) Apply(remote RemoteIdentityConfig) {
	if v := strings.TrimSpace(remote.ClientID); v != "" {
		c.ClientID = v
	}
	if v := strings.TrimSpace(remote.TenantID); v != "" {
		c.TenantID = v
	}
	if scopes := trimList(remote.Scopes); len(scopes) > 0 {
		c.Scopes = scopes
	}
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string   `env:"USER_ID"   envDefault:"dev-user"`
	Email    string   `env:"EMAIL"     envDefault:"dev@example.com"`
	Name     string   `env:"NAME"      envDefault:"Dev User"`
	JobTitle string   `env:"JOB_TITLE"`
	Groups   []string `env:"GROUPS"    envDefault:"admins"          envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// Identity configuration (used when Mode=oauth).
	Identity IdentityConfig `envPrefix:"IDENTITY_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize applies guardrails to the auth sub-configs.
func (c *AuthConfig) Sanitize() {
	c.Identity.Sanitize()
	c.DevAuth.Groups = trimList(c.DevAuth.Groups)
}

// Validate checks the fields the selected mode needs. Identity is validated
// after a remote overlay, so a missing client ID is tolerated while a remote
// document is configured.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeMock:
		if c.DevAuth.UserID == "" || c.DevAuth.Email == "" {
			return errors.New("DEV_AUTH_USER_ID and DEV_AUTH_EMAIL are required in mock mode")
		}
		return nil
	case AuthModeOAuth, "":
		if c.Identity.RemoteConfigURL != "" && c.Identity.ClientID == "" {
			return nil
		}
		return c.Identity.Validate()
	default:
		return fmt.Errorf("invalid AUTH_MODE: %q", c.Mode)
	}
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
