package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observability/metrics"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// RedirectTrackerOptions groups dependencies for RedirectTracker.
type RedirectTrackerOptions struct {
	Storage ports.SessionStorage // Required
	Logger  *slog.Logger         // Optional
	Metrics statsd.Sink          // Optional
}

// RedirectTracker persists the pre-login navigation target and a loop counter
// across the redirect round trip. It only ever touches its own two keys.
type RedirectTracker struct {
	storage ports.SessionStorage
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewRedirectTracker constructs a RedirectTracker.
func NewRedirectTracker(opts RedirectTrackerOptions) (*RedirectTracker, error) {
	if opts.Storage == nil {
		return nil, errors.New("Storage is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectTracker{
		storage: opts.Storage,
		logger:  logger.With("component", "redirect_tracker"),
		metrics: opts.Metrics,
	}, nil
}

// ShouldTrack reports whether path is worth restoring after login.
func (t *RedirectTracker) ShouldTrack(path string) bool {
	return domainauth.ShouldTrack(path)
}

// Track records loc as the post-login target if it qualifies. Accepts the
// current location of the presentation layer.
func (t *RedirectTracker) Track(ctx context.Context, loc domainauth.Location) error {
	if err := t.CheckAndBreakLoop(ctx); err != nil {
		return err
	}
	if !t.ShouldTrack(loc.Path) {
		t.logger.DebugContext(ctx, "not storing redirect target", "path", loc.Path)
		return nil
	}
	return t.Store(ctx, loc.Path, loc.Query)
}

// TrackURL is Track for an absolute or root-relative URL.
func (t *RedirectTracker) TrackURL(ctx context.Context, rawURL string) error {
	target, ok := domainauth.ParseTarget(rawURL)
	if !ok {
		t.logger.WarnContext(ctx, "ignoring unparsable redirect target",
			"url", domainauth.SanitizeURLForLog(rawURL))
		return nil
	}
	return t.Track(ctx, domainauth.Location(target))
}

// Store writes path+query as the redirect target and increments the loop
// counter. A store that would push the counter past MaxRedirectCount clears
// both keys instead.
func (t *RedirectTracker) Store(ctx context.Context, path, query string) error {
	count, err := t.count(ctx)
	if err != nil {
		return err
	}
	next := count + 1
	if domainauth.RedirectLoopDetected(next) {
		t.logger.WarnContext(ctx, "redirect loop detected, clearing redirect target", "count", next)
		metrics.EmitSessionTransition(t.metrics, metrics.SessionMetric{
			Transition: metrics.TransitionRedirectLoop,
			Result:     metrics.ResultNoop,
		})
		return t.Clear(ctx)
	}

	target := domainauth.RedirectTarget{Path: path, Query: query}
	if err := t.storage.Set(ctx, domainauth.RedirectURLKey, target.String()); err != nil {
		return fmt.Errorf("store redirect target: %w", err)
	}
	if err := t.storage.Set(ctx, domainauth.RedirectCountKey, strconv.Itoa(next)); err != nil {
		return fmt.Errorf("store redirect count: %w", err)
	}
	t.logger.InfoContext(ctx, "stored redirect target", "target", target.String(), "count", next)
	return nil
}

// CheckAndBreakLoop clears the target and counter when the persisted counter
// already exceeds MaxRedirectCount.
func (t *RedirectTracker) CheckAndBreakLoop(ctx context.Context) error {
	count, err := t.count(ctx)
	if err != nil {
		return err
	}
	if !domainauth.RedirectLoopDetected(count) {
		return nil
	}
	t.logger.WarnContext(ctx, "redirect loop detected, clearing redirect target", "count", count)
	metrics.EmitSessionTransition(t.metrics, metrics.SessionMetric{
		Transition: metrics.TransitionRedirectLoop,
		Result:     metrics.ResultNoop,
	})
	return t.Clear(ctx)
}

// Consume returns the stored target and deletes it. A second call returns nil
// until something is stored again.
func (t *RedirectTracker) Consume(ctx context.Context) (*domainauth.RedirectTarget, error) {
	raw, ok, err := t.take(ctx)
	if err != nil {
		return nil, fmt.Errorf("consume redirect target: %w", err)
	}
	if !ok {
		return nil, nil
	}
	target, valid := domainauth.ParseTarget(raw)
	if !valid {
		t.logger.WarnContext(ctx, "discarding invalid redirect target", "target", domainauth.SanitizeURLForLog(raw))
		return nil, nil
	}
	return &target, nil
}

// ResetCounter sets the loop counter back to zero.
func (t *RedirectTracker) ResetCounter(ctx context.Context) error {
	if err := t.storage.Delete(ctx, domainauth.RedirectCountKey); err != nil {
		return fmt.Errorf("reset redirect count: %w", err)
	}
	return nil
}

// Clear removes both the stored target and the counter.
func (t *RedirectTracker) Clear(ctx context.Context) error {
	return errors.Join(
		t.storage.Delete(ctx, domainauth.RedirectURLKey),
		t.storage.Delete(ctx, domainauth.RedirectCountKey),
	)
}

func (t *RedirectTracker) take(ctx context.Context) (string, bool, error) {
	if taker, ok := t.storage.(ports.Taker); ok {
		return taker.Take(ctx, domainauth.RedirectURLKey)
	}
	raw, ok, err := t.storage.Get(ctx, domainauth.RedirectURLKey)
	if err != nil || !ok {
		return "", false, err
	}
	if err := t.storage.Delete(ctx, domainauth.RedirectURLKey); err != nil {
		return "", false, err
	}
	return raw, true, nil
}

func (t *RedirectTracker) count(ctx context.Context) (int, error) {
	raw, ok, err := t.storage.Get(ctx, domainauth.RedirectCountKey)
	if err != nil {
		return 0, fmt.Errorf("read redirect count: %w", err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil || n < 0 {
		t.logger.WarnContext(ctx, "ignoring malformed redirect count", "value", raw)
		return 0, nil
	}
	return n, nil
}
