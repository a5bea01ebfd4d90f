package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

// AuthHandlers serves the session status, commands and callback.
type AuthHandlers struct {
	Session   Session
	Navigator Navigator
	Logger    *slog.Logger

	homePath        string
	callbackPath    string
	callbackTimeout time.Duration
	heartbeat       time.Duration
}

func newAuthHandlers(opts RouterOptions) *AuthHandlers {
	h := &AuthHandlers{
		Session:         opts.Session,
		Navigator:       opts.Navigator,
		Logger:          opts.Logger,
		homePath:        opts.HomePath,
		callbackPath:    opts.CallbackPath,
		callbackTimeout: opts.CallbackTimeout,
		heartbeat:       opts.HeartbeatInterval,
	}
	if h.homePath == "" {
		h.homePath = "/"
	}
	if h.callbackPath == "" {
		h.callbackPath = defaultCallbackPath
	}
	if h.callbackTimeout <= 0 {
		h.callbackTimeout = defaultCallbackTimeout
	}
	if h.heartbeat <= 0 {
		h.heartbeat = defaultHeartbeat
	}
	return h
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type statusResponse struct {
	domainauth.SessionState
	Account        *domainauth.Account `json:"account"`
	HasAccessToken bool                `json:"has_access_token"`
	Location       string              `json:"location"`
}

// Status returns a snapshot of the session flags and the canonical account.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	acct := h.Session.Account()
	if acct != nil {
		acct.Claims = nil
	}
	WriteJSON(w, http.StatusOK, statusResponse{
		SessionState:   h.Session.State(),
		Account:        acct,
		HasAccessToken: h.Session.AccessToken().Get() != "",
		Location:       h.Navigator.Location().String(),
	})
}

type profileResponse struct {
	Profile *domainauth.UserProfile `json:"profile"`
	Claims  []domainauth.ClaimEntry `json:"claims"`
}

// Profile returns the canonical account's profile and claim rows.
func (h *AuthHandlers) Profile(w http.ResponseWriter, _ *http.Request) {
	profile := h.Session.Profile().Get()
	if profile == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "no_profile",
			Err:     errors.New("no account is signed in"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, profileResponse{Profile: profile, Claims: h.Session.Claims()})
}

// Token returns the canonical account's access token.
func (h *AuthHandlers) Token(w http.ResponseWriter, _ *http.Request) {
	token := h.Session.AccessToken().Get()
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "no_token",
			Err:     errors.New("no access token is available"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

type loginRequest struct {
	From string `json:"from"`
}

// Login records the client's current location and starts a redirect login.
// The session reports the external navigation on the event stream.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if !DecodeJSON(w, r, &req) {
			return
		}
	} else {
		req.From = r.FormValue("from")
	}

	if req.From != "" {
		target, ok := parseRelative(req.From)
		if !ok {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_from",
				Err:     errors.New("from must be a root-relative path"),
			})
			return
		}
		h.Navigator.SetLocation(domainauth.Location(target))
	}

	h.Session.Login()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "login_requested"})
}

// Logout clears the session. The client follows the navigation home.
func (h *AuthHandlers) Logout(w http.ResponseWriter, _ *http.Request) {
	h.Session.Logout()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "logout_requested"})
}

// Callback receives the identity provider's redirect, completes the login
// and sends the browser to the restored target or home.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	loc := domainauth.Location{Path: r.URL.Path}
	if r.URL.RawQuery != "" {
		loc.Query = "?" + r.URL.RawQuery
	}
	h.Navigator.SetLocation(loc)

	done := h.Session.CompleteRedirect()
	timer := time.NewTimer(h.callbackTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-r.Context().Done():
		return
	case <-h.Session.Done():
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "session_closed",
			Err:     errors.New("session is shutting down"),
		})
		return
	case <-timer.C:
		h.logger().WarnContext(r.Context(), "redirect completion timed out", "timeout", h.callbackTimeout)
		WriteError(w, ErrorParams{
			Code:    http.StatusGatewayTimeout,
			ErrCode: "callback_timeout",
			Err:     errors.New("login did not complete in time"),
		})
		return
	}

	http.Redirect(w, r, h.afterCallback(), http.StatusFound)
}

// afterCallback is where the browser lands once the redirect was handled:
// the location the session navigated to, unless it is still the callback.
func (h *AuthHandlers) afterCallback() string {
	loc := h.Navigator.Location()
	if loc.Path == h.callbackPath {
		return h.homePath
	}
	target, ok := parseRelative(loc.String())
	if !ok {
		return h.homePath
	}
	return target.String()
}

// parseRelative accepts only same-origin, root-relative targets.
func parseRelative(raw string) (domainauth.RedirectTarget, bool) {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return domainauth.RedirectTarget{}, false
	}
	return domainauth.ParseTarget(raw)
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/json")
}
