package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

type streamEvent struct {
	name string
	data string
}

// openStream connects to /auth/events and returns a channel of parsed events.
func openStream(t *testing.T, env *testEnv) (<-chan streamEvent, *http.Response) {
	t.Helper()
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/auth/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	events := make(chan streamEvent, 32)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		var cur streamEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				cur.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				cur.data = strings.TrimPrefix(line, "data: ")
			case line == "" && cur.name != "":
				events <- cur
				cur = streamEvent{}
			}
		}
	}()
	return events, resp
}

func nextEvent(t *testing.T, events <-chan streamEvent) streamEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream ended")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return streamEvent{}
	}
}

func TestEvents_InitialSnapshotThenChanges(t *testing.T) {
	env := newTestEnv(t, nil)
	env.session.accessToken.Set("tok-1")

	events, resp := openStream(t, env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	initial := map[string]string{}
	for range 5 {
		ev := nextEvent(t, events)
		initial[ev.name] = ev.data
	}
	assert.Equal(t, map[string]string{
		eventIsLoggedIn:       "false",
		eventLoginInProgress:  "false",
		eventIsAuthenticating: "false",
		eventAccessToken:      `"tok-1"`,
		eventProfile:          "null",
	}, initial)

	env.session.isLoggedIn.Set(true)
	ev := nextEvent(t, events)
	assert.Equal(t, streamEvent{name: eventIsLoggedIn, data: "true"}, ev)

	env.session.profile.Set(&domainauth.UserProfile{DisplayName: "Ada"})
	ev = nextEvent(t, events)
	require.Equal(t, eventProfile, ev.name)
	var profile domainauth.UserProfile
	require.NoError(t, json.Unmarshal([]byte(ev.data), &profile))
	assert.Equal(t, "Ada", profile.DisplayName)
}

func TestEvents_Navigation(t *testing.T) {
	env := newTestEnv(t, nil)
	events, _ := openStream(t, env)
	for range 5 {
		nextEvent(t, events)
	}

	require.NoError(t, env.router.NavigateExternal(context.Background(), "https://login.example/authorize?state=s"))

	ev := nextEvent(t, events)
	require.Equal(t, eventNavigation, ev.name)
	var nav navigation.Navigation
	require.NoError(t, json.Unmarshal([]byte(ev.data), &nav))
	assert.True(t, nav.External)
	assert.Equal(t, "https://login.example/authorize?state=s", nav.URL)
}

func TestEvents_EndsWhenSessionCloses(t *testing.T) {
	env := newTestEnv(t, nil)
	events, _ := openStream(t, env)
	for range 5 {
		nextEvent(t, events)
	}

	env.session.close()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "expected the stream to end")
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after session close")
	}
}

func TestEvents_Heartbeat(t *testing.T) {
	env := newTestEnv(t, func(o *RouterOptions) { o.HeartbeatInterval = 10 * time.Millisecond })
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/auth/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == ": keepalive" {
			return
		}
	}
	t.Fatal("no heartbeat received")
}
