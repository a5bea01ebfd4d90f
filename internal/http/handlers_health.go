package httpx

import (
	"io"
	"net/http"
)

const (
	healthResponse   = `{"status":"ok"}`
	startingResponse = `{"status":"starting"}`
)

// healthHandler answers liveness and readiness checks. It reports 503 until
// ready returns true.
func healthHandler(ready func() bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, healthResponse
		if ready != nil && !ready() {
			status, body = http.StatusServiceUnavailable, startingResponse
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.WriteString(w, body)
	})
}
