package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-ui-auth/config"
	httpx "github.com/target/mmk-ui-auth/internal/http"
)

// BuildHTTPHandler wraps the agent routes with the standard middleware.
// Order: Recover -> Logging -> Compression -> Router.
func BuildHTTPHandler(routes httpx.RouterOptions, cfg config.HTTPConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	routes.Logger = logger

	h := httpx.NewRouter(routes)
	if cfg.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.CompressionLevel, Logger: logger})(h)
	}
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

// NewServer returns the agent's HTTP server. There is no write timeout
// because /auth/events streams for the life of the client.
func NewServer(addr string, handler http.Handler) *http.Server {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeHTTP runs server until it is shut down. ErrServerClosed is not an error.
func ServeHTTP(server *http.Server, logger *slog.Logger) error {
	logger.Info("starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownHTTPServer drains server within timeout.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
