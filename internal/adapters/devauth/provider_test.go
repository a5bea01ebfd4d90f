package devauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

func newTestProvider(t *testing.T) (*Provider, *navigation.Router) {
	t.Helper()
	router := navigation.NewRouter(domainauth.Location{Path: "/"}, nil)
	prov, err := NewProvider(Config{
		UserID:    "dev-user",
		Email:     "dev@example.com",
		Name:      "Dev User",
		Groups:    []string{"users"},
		Navigator: router,
	})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return prov, router
}

// followCallback lands the router on the URL the provider navigated to.
func followCallback(t *testing.T, router *navigation.Router) {
	t.Helper()
	history := router.History()
	if len(history) == 0 {
		t.Fatal("expected a navigation")
	}
	u, err := url.Parse(history[len(history)-1].URL)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	router.SetLocation(domainauth.Location{Path: u.Path, Query: "?" + u.RawQuery})
}

func TestProvider_LoginAndHandleRedirect(t *testing.T) {
	prov, router := newTestProvider(t)
	ctx := context.Background()

	if err := prov.LoginRedirect(ctx); err != nil {
		t.Fatalf("LoginRedirect error: %v", err)
	}
	last := router.History()[0].URL
	if !strings.HasPrefix(last, "/auth/callback?") {
		t.Fatalf("unexpected callback URL: %s", last)
	}
	if err := prov.LoginRedirect(ctx); !errors.Is(err, domainauth.ErrInteractionInProgress) {
		t.Fatalf("second LoginRedirect error = %v, want ErrInteractionInProgress", err)
	}

	followCallback(t, router)
	res, err := prov.HandleRedirect(ctx)
	if err != nil {
		t.Fatalf("HandleRedirect error: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Account.HomeAccountID != "dev-user.dev" || res.Account.Username != "dev@example.com" {
		t.Fatalf("unexpected account: %+v", res.Account)
	}
	if got := res.Account.Claims.String("given_name"); got != "Dev" {
		t.Fatalf("given_name = %q", got)
	}
	if len(prov.AllAccounts()) != 1 {
		t.Fatalf("expected one cached account, got %d", len(prov.AllAccounts()))
	}

	claims, err := prov.VerifyToken(res.IDToken)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if claims["preferred_username"] != "dev@example.com" {
		t.Fatalf("unexpected id token claims: %v", claims)
	}

	// Replaying the callback is a no-op once the state is consumed.
	again, err := prov.HandleRedirect(ctx)
	if err != nil || again != nil {
		t.Fatalf("replayed HandleRedirect = %v, %v; want nil, nil", again, err)
	}
}

func TestProvider_HandleRedirectStateMismatch(t *testing.T) {
	prov, router := newTestProvider(t)
	if err := prov.LoginRedirect(context.Background()); err != nil {
		t.Fatalf("LoginRedirect error: %v", err)
	}
	router.SetLocation(domainauth.Location{Path: "/auth/callback", Query: "?code=dev&state=forged"})
	if _, err := prov.HandleRedirect(context.Background()); err == nil {
		t.Fatal("expected state mismatch")
	}
	if err := prov.LoginRedirect(context.Background()); err != nil {
		t.Fatalf("status should be None after a failed redirect: %v", err)
	}
}

func TestProvider_AcquireTokens(t *testing.T) {
	prov, _ := newTestProvider(t)
	ctx := context.Background()
	stranger := domainauth.Account{HomeAccountID: "someone.else"}

	_, err := prov.AcquireTokenSilent(ctx, domainauth.TokenRequest{Account: &stranger})
	if !errors.Is(err, domainauth.ErrInteractionRequired) {
		t.Fatalf("silent for unknown account = %v, want ErrInteractionRequired", err)
	}

	res, err := prov.AcquireTokenInteractive(ctx, domainauth.TokenRequest{Scopes: []string{"api://mmk/read"}})
	if err != nil {
		t.Fatalf("AcquireTokenInteractive error: %v", err)
	}
	silent, err := prov.AcquireTokenSilent(ctx, domainauth.TokenRequest{
		Scopes:  []string{"api://mmk/read"},
		Account: &res.Account,
	})
	if err != nil {
		t.Fatalf("AcquireTokenSilent error: %v", err)
	}
	claims, err := prov.VerifyToken(silent.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if claims["scp"] != "api://mmk/read" {
		t.Fatalf("scp = %v", claims["scp"])
	}

	if err := prov.ClearAccountCache(ctx, domainauth.ClearCacheRequest{Account: res.Account}); err != nil {
		t.Fatalf("ClearAccountCache error: %v", err)
	}
	if len(prov.AllAccounts()) != 0 {
		t.Fatal("account should be cleared")
	}
}

func TestNewProvider_Validation(t *testing.T) {
	router := navigation.NewRouter(domainauth.Location{}, nil)
	cases := []Config{
		{Email: "dev@example.com", Navigator: router},
		{UserID: "dev-user", Navigator: router},
		{UserID: "dev-user", Email: "dev@example.com"},
	}
	for _, cfg := range cases {
		if _, err := NewProvider(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
