package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/data"
)

const pingTimeout = 5 * time.Second

// PostgresDSN builds a URL DSN, escaping credentials.
func PostgresDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectDB opens and pings the PostgreSQL account cache database.
func ConnectDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The agent serves one user; a handful of connections is plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if pingErr := db.PingContext(pctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database connected",
			"host", cfg.Host,
			"port", cfg.Port,
			"database", cfg.Name,
		)
	}
	return db, nil
}

// RunMigrations applies pending account cache migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	applied, err := data.RunMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed", "applied", len(applied))
	}
	return nil
}

// ConnectRedis builds a cluster, sentinel or single-node client from cfg and
// pings it.
//
//nolint:ireturn // the concrete client depends on configuration.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if pingErr := client.Ping(pctx).Err(); pingErr != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", pingErr), client.Close())
	}

	if logger != nil {
		logger.InfoContext(ctx, "redis connected",
			"mode", redisMode(cfg),
			"addrs", strings.Join(opts.Addrs, ","),
		)
	}
	return client, nil
}

func redisMode(cfg config.RedisConfig) string {
	switch {
	case cfg.UseCluster:
		return "cluster"
	case cfg.UseSentinel:
		return "sentinel"
	default:
		return "single"
	}
}

// redisOptions maps cfg onto UniversalOptions. NewUniversalClient picks a
// failover client when MasterName is set and a cluster client when
// IsClusterMode is set. A redis:// or rediss:// URI contributes address,
// credentials, database and TLS settings.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password}

	if uri := strings.TrimSpace(cfg.URI); uri != "" {
		if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
			parsed, err := redis.ParseURL(uri)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			opts.Addrs = []string{parsed.Addr}
			opts.Username = parsed.Username
			opts.DB = parsed.DB
			opts.TLSConfig = parsed.TLSConfig
			if parsed.Password != "" {
				opts.Password = parsed.Password
			}
		} else {
			opts.Addrs = []string{uri}
		}
	}

	switch {
	case cfg.UseCluster:
		opts.IsClusterMode = true
		opts.DB = 0
		if nodes := compact(cfg.ClusterNodes); len(nodes) > 0 {
			opts.Addrs = nodes
		}
		if len(opts.Addrs) == 0 {
			return nil, errors.New("redis cluster needs CLUSTER_NODES or URI")
		}
	case cfg.UseSentinel:
		opts.Addrs = compact(cfg.SentinelNodes)
		opts.MasterName = strings.TrimSpace(cfg.SentinelMasterName)
		opts.SentinelPassword = cfg.SentinelPassword
		if len(opts.Addrs) == 0 || opts.MasterName == "" {
			return nil, errors.New("redis sentinel needs SENTINEL_NODES and SENTINEL_MASTER_NAME")
		}
	default:
		if len(opts.Addrs) == 0 {
			return nil, errors.New("redis needs a URI")
		}
	}
	return opts, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
