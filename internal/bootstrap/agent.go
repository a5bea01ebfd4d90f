package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/adapters/graph"
	"github.com/target/mmk-ui-auth/internal/adapters/navigation"
	"github.com/target/mmk-ui-auth/internal/adapters/oidc"
	"github.com/target/mmk-ui-auth/internal/adapters/providerhandle"
	"github.com/target/mmk-ui-auth/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	httpx "github.com/target/mmk-ui-auth/internal/http"
	"github.com/target/mmk-ui-auth/internal/observability/statsd"
	"github.com/target/mmk-ui-auth/internal/ports"
	"github.com/target/mmk-ui-auth/internal/service"
)

// Agent is the assembled session agent: storage, identity provider handle,
// session manager and the loopback HTTP surface.
type Agent struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	db       *sql.DB
	redis    redis.UniversalClient
	metrics  *statsd.Client
	client   *http.Client
	storage  ports.SessionStorage
	accounts ports.AccountStore

	router   *navigation.Router
	provider *providerhandle.Handle
	session  *service.SessionManager
	handler  http.Handler
}

// NewAgent connects the configured backends and wires the session. The
// identity provider is not discovered here; Run installs it.
func NewAgent(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{cfg: cfg, logger: logger}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Agent) connect(ctx context.Context) error {
	cfg := a.cfg

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.Prefix,
		Logger:  a.logger,
		GlobalTags: map[string]string{
			"auth_mode": string(cfg.Auth.Mode),
		},
	})
	if err != nil {
		return fmt.Errorf("create statsd client: %w", err)
	}
	a.metrics = metrics

	if cfg.UsesRedis() {
		client, err := ConnectRedis(ctx, cfg.Redis, a.logger)
		if err != nil {
			return err
		}
		a.redis = client
	}

	var enc cryptoutil.Encryptor = &cryptoutil.NoopEncryptor{}
	if cfg.UsesPostgres() {
		db, err := ConnectDB(ctx, cfg.Postgres, a.logger)
		if err != nil {
			return err
		}
		a.db = db
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, a.logger); err != nil {
				return err
			}
		}
		enc, err = CreateEncryptor(cfg.SecretsEncryptionKey, cfg.IsDev, a.logger)
		if err != nil {
			return err
		}
	}

	deps := StorageDeps{Config: cfg, Redis: a.redis, DB: a.db, Encryptor: enc}
	if a.storage, err = BuildSessionStorage(deps); err != nil {
		return err
	}
	if a.accounts, err = BuildAccountStore(deps); err != nil {
		return err
	}
	a.client = oidc.NewHTTPClient(cfg.Auth.Identity.HTTPTimeout)
	return nil
}

func (a *Agent) wire() error {
	cfg := a.cfg
	a.router = navigation.NewRouter(domainauth.Location{Path: cfg.Session.HomePath}, a.logger)
	a.provider = providerhandle.New(a.logger)

	tracker, err := service.NewRedirectTracker(service.RedirectTrackerOptions{
		Storage: a.storage,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return fmt.Errorf("create redirect tracker: %w", err)
	}
	reconciler, err := service.NewAccountReconciler(service.AccountReconcilerOptions{
		Provider: a.provider,
		Logger:   a.logger,
		Metrics:  a.metrics,
	})
	if err != nil {
		return fmt.Errorf("create account reconciler: %w", err)
	}
	tokens, err := service.NewTokenAcquirer(service.TokenAcquirerOptions{
		Provider: a.provider,
		Logger:   a.logger,
		Metrics:  a.metrics,
	})
	if err != nil {
		return fmt.Errorf("create token acquirer: %w", err)
	}

	var photos ports.PhotoFetcher
	if cfg.Profile.PhotoEnabled && cfg.Auth.Mode != config.AuthModeMock {
		photos = graph.NewPhotoFetcher(graph.PhotoFetcherOptions{
			URL:        cfg.Profile.PhotoURL,
			HTTPClient: a.client,
			Logger:     a.logger,
		})
	}
	paths := cfg.Profile.ClaimPaths()
	profiles, err := service.NewProfileCache(service.ProfileCacheOptions{
		Tokens:      tokens,
		Photos:      photos,
		PhotoScopes: cfg.Profile.PhotoScopes,
		ClaimPaths:  &paths,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("create profile cache: %w", err)
	}

	a.session, err = service.NewSessionManager(service.SessionManagerOptions{
		Provider:   a.provider,
		Navigator:  a.router,
		Tracker:    tracker,
		Reconciler: reconciler,
		Tokens:     tokens,
		Profiles:   profiles,
		Scopes:     cfg.Auth.Identity.Scopes,
		HomePath:   cfg.Session.HomePath,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		profiles.Close()
		return fmt.Errorf("create session manager: %w", err)
	}

	a.handler = BuildHTTPHandler(httpx.RouterOptions{
		Session:         a.session,
		Navigator:       a.router,
		HomePath:        cfg.Session.HomePath,
		CallbackPath:    CallbackPath(cfg.Auth.Identity),
		CallbackTimeout: cfg.HTTP.CallbackTimeout,
		Ready:           a.provider.Ready,
	}, cfg.HTTP, a.logger)
	return nil
}

// Handler returns the agent's HTTP handler.
func (a *Agent) Handler() http.Handler { return a.handler }

// Session returns the session manager.
func (a *Agent) Session() *service.SessionManager { return a.session }

// Navigator returns the in-process router the session navigates with.
func (a *Agent) Navigator() *navigation.Router { return a.router }

// InstallProvider builds the configured identity provider, swaps it into the
// handle and starts the session. ctx must outlive the agent: the OIDC key set
// fetches signing keys with it.
func (a *Agent) InstallProvider(ctx context.Context) error {
	prov, err := BuildProvider(ctx, ProviderDeps{
		Auth:       a.cfg.Auth,
		Storage:    a.storage,
		Accounts:   a.accounts,
		Navigator:  a.router,
		HTTPClient: a.client,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	a.provider.Swap(prov)
	a.logger.InfoContext(ctx, "identity provider installed", "mode", a.cfg.Auth.Mode)

	if err := a.session.Start(ctx); err != nil && !errors.Is(err, service.ErrSessionStarted) {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Run serves HTTP, installs the identity provider and blocks until ctx is
// done or a component fails. /healthz reports starting until the provider
// is installed.
func (a *Agent) Run(ctx context.Context) error {
	server := NewServer(a.cfg.HTTP.Addr, a.handler)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ServeHTTP(server, a.logger); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.InstallProvider(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.session.Done():
		}
		return ShutdownHTTPServer(context.WithoutCancel(ctx), server, a.cfg.HTTP.ShutdownTimeout, a.logger)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close stops the session and releases every backend connection.
func (a *Agent) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.provider != nil {
		a.provider.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Close(); err != nil {
			a.logger.Warn("close statsd client", "error", err)
		}
	}
}
