package metrics

import (
	"time"

	obserrors "github.com/target/mmk-ui-auth/internal/observability/errors"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Session transitions.
const (
	TransitionLogin        = "login"
	TransitionLogout       = "logout"
	TransitionReconcile    = "reconcile"
	TransitionRedirect     = "redirect"
	TransitionRedirectLoop = "redirect_loop"
)

// SessionMetric captures a session state transition for metric emission.
type SessionMetric struct {
	Transition string
	Result     string
	Err        error
}

// EmitSessionTransition emits a session.transition counter.
func EmitSessionTransition(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("session.transition", 1, tags)
}

// TokenMetric captures one token acquisition attempt.
type TokenMetric struct {
	Mode     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitTokenAcquire emits token.acquire counters and timings.
func EmitTokenAcquire(sink statsd.Sink, in TokenMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"mode":   in.Mode,
		"result": in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("token.acquire", 1, tags)

	if in.Duration > 0 {
		sink.Timing("token.acquire.duration", in.Duration, CloneTags(tags))
	}
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result != ResultError {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
