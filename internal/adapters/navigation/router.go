// Package navigation provides the Navigator used by the local agent. The
// router holds the presentation client's current location and publishes
// every navigation so connected clients can follow it.
package navigation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
)

// Navigation is one navigation request issued by the session.
type Navigation struct {
	URL      string `json:"url"`
	External bool   `json:"external"`
}

// Router is a ports.Navigator. It is safe for concurrent use.
type Router struct {
	mu      sync.Mutex
	loc     domainauth.Location
	history []Navigation

	navs   *observable.Broadcaster[Navigation]
	logger *slog.Logger
}

// NewRouter creates a Router positioned at initial.
func NewRouter(initial domainauth.Location, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if initial.Path == "" {
		initial.Path = "/"
	}
	return &Router{
		loc:    initial,
		navs:   observable.NewBroadcaster[Navigation](),
		logger: logger.With("component", "navigation"),
	}
}

// Location returns the current location.
func (r *Router) Location() domainauth.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loc
}

// SetLocation records a page load reported by the client without publishing.
func (r *Router) SetLocation(loc domainauth.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loc = loc
}

// Navigate moves to an in-app path such as "/reports?id=1".
func (r *Router) Navigate(ctx context.Context, path string) error {
	target, ok := domainauth.ParseTarget(path)
	if !ok {
		return errors.New("navigate: path must be root-relative")
	}

	r.mu.Lock()
	r.loc = domainauth.Location(target)
	nav := Navigation{URL: target.String()}
	r.history = append(r.history, nav)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "navigating", "path", target.Path)
	r.navs.Publish(nav)
	return nil
}

// NavigateExternal leaves the application. The location is unchanged until
// the client reports the next page load.
func (r *Router) NavigateExternal(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return errors.New("navigate external: empty URL")
	}
	nav := Navigation{URL: rawURL, External: true}

	r.mu.Lock()
	r.history = append(r.history, nav)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "redirecting to external URL", "url", domainauth.SanitizeURLForLog(rawURL))
	r.navs.Publish(nav)
	return nil
}

// History returns every navigation issued so far.
func (r *Router) History() []Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Navigation(nil), r.history...)
}

// Subscribe streams navigations until ctx is done.
func (r *Router) Subscribe(ctx context.Context) <-chan Navigation {
	return r.navs.Subscribe(ctx)
}
