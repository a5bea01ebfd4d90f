// Package providerhandle holds the identity provider behind a handle that can
// be swapped once configuration resolves. Consumers see a provisional provider
// until then and a complete provider afterwards, never a mix of the two.
package providerhandle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observable"
	"github.com/target/mmk-ui-auth/internal/ports"
)

type box struct {
	provider ports.IdentityProvider
	ready    bool
}

// Handle is a ports.IdentityProvider forwarding to the current provider.
// Status and event subscriptions outlive swaps.
type Handle struct {
	current atomic.Pointer[box]
	logger  *slog.Logger

	mu       sync.Mutex
	gen      uint64
	stop     context.CancelFunc
	statuses *observable.Broadcaster[domainauth.InteractionStatus]
	events   *observable.Broadcaster[domainauth.Event]
}

// New returns a Handle serving the provisional provider.
func New(logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{
		logger:   logger.With("component", "provider_handle"),
		statuses: observable.NewReplayBroadcaster(domainauth.InteractionNone),
		events:   observable.NewBroadcaster[domainauth.Event](),
	}
	h.current.Store(&box{provider: Provisional{}})
	return h
}

// Swap installs next as the live provider and relays its streams.
func (h *Handle) Swap(next ports.IdentityProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		h.stop()
	}
	h.gen++
	gen := h.gen
	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.current.Store(&box{provider: next, ready: true})

	go relay(h, gen, next.InteractionStatus(ctx), h.statuses)
	go relay(h, gen, next.Events(ctx), h.events)
	h.logger.Info("identity provider ready")
}

func relay[T any](h *Handle, gen uint64, src <-chan T, dst *observable.Broadcaster[T]) {
	for v := range src {
		h.mu.Lock()
		if h.gen != gen {
			h.mu.Unlock()
			return
		}
		dst.Publish(v)
		h.mu.Unlock()
	}
}

// Ready reports whether a configured provider has been installed.
func (h *Handle) Ready() bool {
	return h.current.Load().ready
}

// Provider returns the live provider.
func (h *Handle) Provider() ports.IdentityProvider {
	return h.current.Load().provider
}

// Close stops relaying the live provider's streams.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

func (h *Handle) ActiveAccount() *domainauth.Account    { return h.Provider().ActiveAccount() }
func (h *Handle) AllAccounts() []domainauth.Account     { return h.Provider().AllAccounts() }
func (h *Handle) SetActiveAccount(a *domainauth.Account) { h.Provider().SetActiveAccount(a) }

func (h *Handle) HandleRedirect(ctx context.Context) (*domainauth.AuthResult, error) {
	return h.Provider().HandleRedirect(ctx)
}

func (h *Handle) LoginRedirect(ctx context.Context) error {
	return h.Provider().LoginRedirect(ctx)
}

func (h *Handle) AcquireTokenSilent(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	return h.Provider().AcquireTokenSilent(ctx, req)
}

func (h *Handle) AcquireTokenInteractive(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	return h.Provider().AcquireTokenInteractive(ctx, req)
}

func (h *Handle) ClearAccountCache(ctx context.Context, req domainauth.ClearCacheRequest) error {
	return h.Provider().ClearAccountCache(ctx, req)
}

func (h *Handle) InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus {
	return h.statuses.Subscribe(ctx)
}

func (h *Handle) Events(ctx context.Context) <-chan domainauth.Event {
	return h.events.Subscribe(ctx)
}

// Provisional is the provider in place before configuration resolves. It has
// no accounts and refuses every operation with ErrProviderNotReady.
type Provisional struct{}

func (Provisional) ActiveAccount() *domainauth.Account  { return nil }
func (Provisional) AllAccounts() []domainauth.Account   { return nil }
func (Provisional) SetActiveAccount(*domainauth.Account) {}

func (Provisional) HandleRedirect(context.Context) (*domainauth.AuthResult, error) {
	return nil, domainauth.ErrProviderNotReady
}

func (Provisional) LoginRedirect(context.Context) error {
	return domainauth.ErrProviderNotReady
}

func (Provisional) AcquireTokenSilent(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
	return domainauth.AuthResult{}, domainauth.ErrProviderNotReady
}

func (Provisional) AcquireTokenInteractive(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
	return domainauth.AuthResult{}, domainauth.ErrProviderNotReady
}

func (Provisional) ClearAccountCache(context.Context, domainauth.ClearCacheRequest) error {
	return domainauth.ErrProviderNotReady
}

func (Provisional) InteractionStatus(ctx context.Context) <-chan domainauth.InteractionStatus {
	ch := make(chan domainauth.InteractionStatus, 1)
	ch <- domainauth.InteractionNone
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (Provisional) Events(ctx context.Context) <-chan domainauth.Event {
	ch := make(chan domainauth.Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
