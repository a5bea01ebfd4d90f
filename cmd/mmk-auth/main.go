package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/adapters/oidc"
	"github.com/target/mmk-ui-auth/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(cfg.LogLevel)

	client := oidc.NewHTTPClient(cfg.Auth.Identity.HTTPTimeout)
	if err = bootstrap.LoadRemoteIdentity(ctx, &cfg, client, logger); err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)

	agent, err := bootstrap.NewAgent(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer agent.Close()

	return agent.Run(ctx)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting mmk-auth agent",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"session_storage", cfg.Session.Storage,
		"account_cache", cfg.AccountCache,
		"dev", cfg.IsDev)
}
