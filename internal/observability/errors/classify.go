// Package errors derives low-cardinality class names from errors for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"golang.org/x/oauth2"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-auth/internal/errors"
)

var sentinels = []struct {
	err   error
	class string
}{
	{domainauth.ErrInteractionRequired, "interaction_required"},
	{domainauth.ErrInteractionInProgress, "interaction_in_progress"},
	{domainauth.ErrProviderNotReady, "provider_not_ready"},
	{domainauth.ErrNoAccount, "no_account"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
}

// Classify names the kind of err. Known session errors map to fixed names,
// storage failures to "store_<code>" and OAuth endpoint failures to
// "oauth_<code>". Anything else is the snake_cased type of the innermost error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if goerrors.Is(err, s.err) {
			return s.class
		}
	}
	if code := apperrors.GetCode(err); code != "" {
		return "store_" + string(code)
	}
	var re *oauth2.RetrieveError
	if goerrors.As(err, &re) && re.ErrorCode != "" {
		return "oauth_" + strings.ToLower(re.ErrorCode)
	}
	var ne net.Error
	if goerrors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return typeName(err)
}

func typeName(err error) string {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
