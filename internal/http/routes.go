// Package httpx serves the session agent's loopback HTTP surface: session
// status and commands, the identity provider callback and an event stream
// the presentation client follows.
package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
)

// Session is the part of service.SessionManager served over HTTP.
type Session interface {
	State() domainauth.SessionState
	Account() *domainauth.Account
	Claims() []domainauth.ClaimEntry

	IsLoggedIn() *observable.Value[bool]
	LoginInProgress() *observable.Value[bool]
	IsAuthenticating() *observable.Value[bool]
	AccessToken() *observable.Value[string]
	Profile() *observable.Value[*domainauth.UserProfile]

	CompleteRedirect() <-chan struct{}
	Login()
	Logout()
	Done() <-chan struct{}
}

// Navigator tracks the client's location and streams the navigations the
// session issues.
type Navigator interface {
	Location() domainauth.Location
	SetLocation(loc domainauth.Location)
	Subscribe(ctx context.Context) <-chan navigation.Navigation
}

const (
	defaultCallbackPath    = "/auth/callback"
	defaultCallbackTimeout = 30 * time.Second
	defaultHeartbeat       = 25 * time.Second
)

// RouterOptions wires the HTTP surface.
type RouterOptions struct {
	Session   Session   // Required
	Navigator Navigator // Required

	HomePath          string        // defaults to "/"
	CallbackPath      string        // defaults to /auth/callback
	CallbackTimeout   time.Duration // defaults to 30s
	HeartbeatInterval time.Duration // defaults to 25s

	// Ready reports whether the identity provider has been installed.
	// Nil means always ready.
	Ready  func() bool
	Logger *slog.Logger
}

// NewRouter returns the agent's routes.
func NewRouter(opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	h := newAuthHandlers(opts)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/profile", h.Profile)
	mux.HandleFunc("GET /auth/token", h.Token)
	mux.HandleFunc("GET /auth/events", h.Events)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET "+h.callbackPath, h.Callback)

	health := healthHandler(opts.Ready)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	return SameOrigin(mux)
}
