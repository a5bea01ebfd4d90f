package service

import (
	"context"
	"errors"
	"log/slog"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/observability/metrics"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// AccountReconcilerOptions groups dependencies for AccountReconciler.
type AccountReconcilerOptions struct {
	Provider ports.IdentityProvider // Required
	Logger   *slog.Logger           // Optional
	Metrics  statsd.Sink            // Optional
}

// AccountReconciler derives the logged-in verdict and the canonical active
// account from the provider's cache. Repeated calls against unchanged
// provider state produce the same decision and no further writes.
type AccountReconciler struct {
	provider ports.IdentityProvider
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewAccountReconciler constructs an AccountReconciler.
func NewAccountReconciler(opts AccountReconcilerOptions) (*AccountReconciler, error) {
	if opts.Provider == nil {
		return nil, errors.New("Provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountReconciler{
		provider: opts.Provider,
		logger:   logger.With("component", "account_reconciler"),
		metrics:  opts.Metrics,
	}, nil
}

// Reconcile runs one pass: read, adopt the first account when none is active,
// then verify the verdict against a second read of the account list.
func (r *AccountReconciler) Reconcile(ctx context.Context) domainauth.Decision {
	active := r.provider.ActiveAccount()
	accounts := r.provider.AllAccounts()

	decision := domainauth.Reconcile(active, accounts)
	if decision.Adopt {
		r.logger.InfoContext(ctx, "adopting first cached account", "account", decision.Account.Username)
		r.provider.SetActiveAccount(decision.Account)
	}

	decision = domainauth.VerifyConsistent(decision, r.provider.AllAccounts())
	if decision.Corrected {
		r.logger.WarnContext(ctx, "active account not found in provider cache, clearing selection")
		r.provider.SetActiveAccount(nil)
	}

	result := metrics.ResultNoop
	if decision.Adopt || decision.Corrected {
		result = metrics.ResultSuccess
	}
	metrics.EmitSessionTransition(r.metrics, metrics.SessionMetric{
		Transition: metrics.TransitionReconcile,
		Result:     result,
	})
	return decision
}
