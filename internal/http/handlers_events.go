package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/target/mmk-ui-auth/internal/observable"
)

// Server-sent event names.
const (
	eventIsLoggedIn       = "is_logged_in"
	eventLoginInProgress  = "login_in_progress"
	eventIsAuthenticating = "is_authenticating"
	eventAccessToken      = "access_token"
	eventProfile          = "profile"
	eventNavigation       = "navigation"
)

type sseEvent struct {
	name string
	data any
}

// Events streams every session observable and each navigation as
// server-sent events. Observables yield their current value first.
func (h *AuthHandlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("response does not support streaming"),
		})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	out := make(chan sseEvent)
	relay(ctx, &wg, out, eventIsLoggedIn, h.Session.IsLoggedIn())
	relay(ctx, &wg, out, eventLoginInProgress, h.Session.LoginInProgress())
	relay(ctx, &wg, out, eventIsAuthenticating, h.Session.IsAuthenticating())
	relay(ctx, &wg, out, eventAccessToken, h.Session.AccessToken())
	relay(ctx, &wg, out, eventProfile, h.Session.Profile())

	navs := h.Navigator.Subscribe(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for nav := range navs {
			select {
			case out <- sseEvent{name: eventNavigation, data: nav}:
			case <-ctx.Done():
				return
			}
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Session.Done():
			return
		case ev := <-out:
			if err := writeEvent(w, ev); err != nil {
				h.logger().DebugContext(ctx, "event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// relay forwards every value of v to out as a named event until ctx is done
// or v is closed.
func relay[T comparable](
	ctx context.Context,
	wg *sync.WaitGroup,
	out chan<- sseEvent,
	name string,
	v *observable.Value[T],
) {
	unsub, ch := v.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- sseEvent{name: name, data: item}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func writeEvent(w io.Writer, ev sseEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
