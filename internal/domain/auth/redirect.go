package auth

import (
	"net/url"
	"strings"
)

// Storage keys owned by the redirect tracker. The provider shares the same
// storage tier, so only these two keys are ever touched.
const (
	RedirectURLKey   = "redirectUrl"
	RedirectCountKey = "msalRedirectCount"
)

// MaxRedirectCount is the number of tracked redirects tolerated before the
// persisted target is treated as a loop and discarded.
const MaxRedirectCount = 10

// RedirectTarget is the pre-login navigation target restored after the round trip.
type RedirectTarget struct {
	Path  string
	Query string
}

// String returns the stored form: path immediately followed by the query.
func (t RedirectTarget) String() string {
	return Location(t).String()
}

var untrackedMarkers = []string{"/home", "/auth", "/login"}

// ShouldTrack reports whether path is worth restoring after login.
// The root, home, auth and login pages are never tracked.
func ShouldTrack(path string) bool {
	if path == "" || path == "/" {
		return false
	}
	for _, m := range untrackedMarkers {
		if strings.Contains(path, m) {
			return false
		}
	}
	return true
}

// RedirectLoopDetected reports whether count exceeds the loop threshold.
func RedirectLoopDetected(count int) bool {
	return count > MaxRedirectCount
}

// ParseTarget splits a stored or absolute URL into path and query.
// Scheme and host are dropped so only same-origin targets are ever restored.
func ParseTarget(raw string) (RedirectTarget, bool) {
	if raw == "" {
		return RedirectTarget{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return RedirectTarget{}, false
	}
	t := RedirectTarget{Path: u.Path}
	if u.RawQuery != "" {
		t.Query = "?" + u.RawQuery
	}
	return t, true
}

var sensitiveParams = []string{"token", "code", "id_token"}

// SanitizeURLForLog strips query strings that may carry codes or tokens.
func SanitizeURLForLog(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "external URL"
	}
	for _, p := range sensitiveParams {
		if strings.Contains(u.RawQuery, p) {
			return u.Scheme + "://" + u.Host + u.Path + "[...sensitive params removed]"
		}
	}
	return raw
}
