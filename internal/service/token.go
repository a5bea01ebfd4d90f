package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observability/metrics"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// Token acquisition modes used for logging and metric tags.
const (
	tokenModeSilent      = "silent"
	tokenModeInteractive = "interactive"
)

// TokenAcquirerOptions groups dependencies for TokenAcquirer.
type TokenAcquirerOptions struct {
	Provider ports.IdentityProvider // Required
	Logger   *slog.Logger           // Optional
	Metrics  statsd.Sink            // Optional
}

// TokenAcquirer obtains access tokens silently and escalates to an
// interactive prompt only when the provider requires user interaction.
type TokenAcquirer struct {
	provider ports.IdentityProvider
	logger   *slog.Logger
	metrics  statsd.Sink
	inflight singleflight.Group
}

// NewTokenAcquirer constructs a TokenAcquirer.
func NewTokenAcquirer(opts TokenAcquirerOptions) (*TokenAcquirer, error) {
	if opts.Provider == nil {
		return nil, errors.New("Provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAcquirer{
		provider: opts.Provider,
		logger:   logger.With("component", "token_acquirer"),
		metrics:  opts.Metrics,
	}, nil
}

// Acquire returns an access token for account and scopes. Concurrent calls
// for the same account and scope set share one provider round trip.
func (a *TokenAcquirer) Acquire(ctx context.Context, account *domainauth.Account, scopes []string) (string, error) {
	if account == nil {
		return "", domainauth.ErrNoAccount
	}
	key := flightKey(account.HomeAccountID, scopes)
	v, err, _ := a.inflight.Do(key, func() (any, error) {
		return a.acquire(ctx, account, scopes)
	})
	if err != nil {
		return "", err
	}
	token, _ := v.(string)
	return token, nil
}

func (a *TokenAcquirer) acquire(ctx context.Context, account *domainauth.Account, scopes []string) (string, error) {
	start := time.Now()
	res, err := a.provider.AcquireTokenSilent(ctx, domainauth.TokenRequest{
		Scopes:  scopes,
		Account: account,
	})
	a.record(tokenModeSilent, time.Since(start), err)
	if err == nil {
		return res.AccessToken, nil
	}

	if domainauth.EscalationFor(err) != domainauth.EscalationInteractive {
		a.logger.ErrorContext(ctx, "silent token acquisition failed", "error", err, "scopes", scopes)
		return "", err
	}

	a.logger.InfoContext(ctx, "silent token acquisition requires interaction, prompting user", "scopes", scopes)
	start = time.Now()
	res, err = a.provider.AcquireTokenInteractive(ctx, domainauth.TokenRequest{Scopes: scopes})
	a.record(tokenModeInteractive, time.Since(start), err)
	if err != nil {
		a.logger.ErrorContext(ctx, "interactive token acquisition failed", "error", err, "scopes", scopes)
		return "", fmt.Errorf("acquire token interactively: %w", err)
	}
	return res.AccessToken, nil
}

func (a *TokenAcquirer) record(mode string, d time.Duration, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitTokenAcquire(a.metrics, metrics.TokenMetric{
		Mode:     mode,
		Result:   result,
		Duration: d,
		Err:      err,
	})
}

// flightKey identifies a request by account and the set of scopes, ignoring order.
func flightKey(accountID string, scopes []string) string {
	sorted := slices.Clone(scopes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return accountID + "|" + strings.Join(sorted, " ")
}
