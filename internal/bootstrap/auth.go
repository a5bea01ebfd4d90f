package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/adapters/devauth"
	"github.com/target/mmk-ui-auth/internal/adapters/oidc"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// ProviderDeps contains what the identity provider adapters need.
type ProviderDeps struct {
	Auth       config.AuthConfig
	Storage    ports.SessionStorage
	Accounts   ports.AccountStore
	Navigator  ports.Navigator
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// BuildProvider creates the identity provider for the configured auth mode.
// OAuth mode runs discovery, so ctx bounds the network calls.
//
//nolint:ireturn // the provider is selected by configuration.
func BuildProvider(ctx context.Context, deps ProviderDeps) (ports.IdentityProvider, error) {
	switch deps.Auth.Mode {
	case config.AuthModeMock:
		dev := deps.Auth.DevAuth
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:       dev.UserID,
			Email:        dev.Email,
			Name:         dev.Name,
			JobTitle:     dev.JobTitle,
			Groups:       dev.Groups,
			CallbackPath: CallbackPath(deps.Auth.Identity),
			Navigator:    deps.Navigator,
			Logger:       deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		return prov, nil

	case config.AuthModeOAuth, "":
		id := deps.Auth.Identity
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     id.ClientID,
			ClientSecret: id.ClientSecret,
			RedirectURL:  id.RedirectURL,
			Scope:        strings.Join(id.Scopes, " "),
			DiscoveryURL: id.Issuer(),
			HTTPClient:   deps.HTTPClient,
			Storage:      deps.Storage,
			Accounts:     deps.Accounts,
			Navigator:    deps.Navigator,
			Logger:       deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", deps.Auth.Mode)
	}
}

// CallbackPath is the local path the identity provider redirects back to.
func CallbackPath(id config.IdentityConfig) string {
	u, err := url.Parse(id.RedirectURL)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return "/auth/callback"
	}
	return u.Path
}
