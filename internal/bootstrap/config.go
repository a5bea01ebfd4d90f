package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/mmk-ui-auth/config"
)

// InitLogger installs a JSON logger at the given level as the default.
func InitLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from the environment and an optional .env file.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// maxRemoteConfigBytes bounds the remote identity document.
const maxRemoteConfigBytes = 64 << 10

// LoadRemoteIdentity overlays the document at IDENTITY_REMOTE_CONFIG_URL onto
// the identity config. Any failure is returned; the agent cannot start
// without the document once one is configured.
func LoadRemoteIdentity(ctx context.Context, cfg *config.AppConfig, client *http.Client, logger *slog.Logger) error {
	src := cfg.Auth.Identity.RemoteConfigURL
	if src == "" || cfg.Auth.Mode == config.AuthModeMock {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("remote config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch remote config: unexpected status %d", resp.StatusCode)
	}
	var remote config.RemoteIdentityConfig
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteConfigBytes)).Decode(&remote); err != nil {
		return fmt.Errorf("decode remote config: %w", err)
	}

	cfg.Auth.Identity.Apply(remote)
	if logger != nil {
		logger.InfoContext(ctx, "remote identity config loaded",
			"client_id", cfg.Auth.Identity.ClientID,
			"tenant_id", cfg.Auth.Identity.TenantID,
			"scopes", len(cfg.Auth.Identity.Scopes))
	}
	return nil
}
