package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-auth/internal/errors"
)

type customErr struct{}

func (*customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"interaction required", fmt.Errorf("silent: %w", domainauth.ErrInteractionRequired), "interaction_required"},
		{"in progress", domainauth.ErrInteractionInProgress, "interaction_in_progress"},
		{"not ready", domainauth.ErrProviderNotReady, "provider_not_ready"},
		{"deadline", fmt.Errorf("refresh: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"oauth", fmt.Errorf("exchange: %w", &oauth2.RetrieveError{ErrorCode: "invalid_client"}), "oauth_invalid_client"},
		{"store", fmt.Errorf("save: %w", apperrors.New(apperrors.ErrCodeUnavailable, "down")), "store_unavailable"},
		{"typed", fmt.Errorf("wrap: %w", &customErr{}), "errors_customerr"},
		{"plain", goerrors.New("boom"), "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
