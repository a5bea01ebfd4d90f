package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/data/cryptoutil"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// stalePurger is implemented by stores that can purge in a single statement.
type stalePurger interface {
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// OpenAccountStore connects only what the configured account cache needs.
// The returned func releases those connections.
//
//nolint:ireturn // backend chosen by ACCOUNT_CACHE.
func OpenAccountStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (ports.AccountStore, func(), error) {
	var closers []func() error
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && logger != nil {
				logger.Warn("close connection", "error", err)
			}
		}
	}

	deps := StorageDeps{Config: cfg, Encryptor: &cryptoutil.NoopEncryptor{}}
	switch cfg.AccountCache {
	case config.AccountCacheRedis:
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, release, err
		}
		closers = append(closers, client.Close)
		deps.Redis = client
	case config.AccountCachePostgres:
		db, err := ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, release, err
		}
		closers = append(closers, db.Close)
		deps.DB = db
		if deps.Encryptor, err = CreateEncryptor(cfg.SecretsEncryptionKey, cfg.IsDev, logger); err != nil {
			release()
			return nil, func() {}, err
		}
	}

	store, err := BuildAccountStore(deps)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return store, release, nil
}

// StaleAccounts returns the cached accounts last written before cutoff.
func StaleAccounts(ctx context.Context, store ports.AccountStore, cutoff time.Time) ([]ports.CachedAccount, error) {
	all, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var stale []ports.CachedAccount
	for _, acct := range all {
		if acct.UpdatedAt.Before(cutoff) {
			stale = append(stale, acct)
		}
	}
	return stale, nil
}

// PurgeStaleAccounts deletes cached accounts last written before cutoff and
// returns how many were removed.
func PurgeStaleAccounts(ctx context.Context, store ports.AccountStore, cutoff time.Time) (int64, error) {
	if p, ok := store.(stalePurger); ok {
		n, err := p.PurgeStale(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("purge accounts: %w", err)
		}
		return n, nil
	}

	stale, err := StaleAccounts(ctx, store, cutoff)
	if err != nil {
		return 0, err
	}
	var (
		n    int64
		errs []error
	)
	for _, acct := range stale {
		if err := store.Delete(ctx, acct.Account.HomeAccountID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", acct.Account.HomeAccountID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
