package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is everything the agent reads from its environment, parsed with
// caarlos0/env. Each concern lives in its own file: auth.go, session.go,
// database.go, profile.go, http.go and observability.go.
type AppConfig struct {
	// IsDev relaxes production checks. NODE_ENV=development also enables it.
	IsDev    bool   `env:"DEV"       envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"` // debug, info, warn or error

	// SecretsEncryptionKey seals cached tokens in the postgres account cache.
	SecretsEncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`

	Auth         AuthConfig
	Session      SessionConfig       `envPrefix:"SESSION_"`
	AccountCache AccountCacheBackend `env:"ACCOUNT_CACHE" envDefault:"memory"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Profile       ProfileConfig `envPrefix:"PROFILE_"`
	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// Sanitize normalizes values after parsing.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.Profile.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	if !c.IsDev {
		switch strings.ToLower(os.Getenv("NODE_ENV")) {
		case "development", "dev":
			c.IsDev = true
		}
	}
}

// Validate reports configuration that cannot produce a working session.
func (c *AppConfig) Validate() error {
	errs := []error{c.Auth.Validate(), c.Profile.Validate()}
	if c.Auth.Mode == AuthModeMock && !c.IsDev {
		errs = append(errs, errors.New("AUTH_MODE=mock requires DEV=true"))
	}
	switch c.AccountCache {
	case AccountCacheMemory, AccountCacheRedis, AccountCachePostgres:
	default:
		errs = append(errs, fmt.Errorf("invalid ACCOUNT_CACHE: %q", c.AccountCache))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any configured component needs a Redis connection.
func (c *AppConfig) UsesRedis() bool {
	return c.Session.Storage == StorageRedis || c.AccountCache == AccountCacheRedis
}

// UsesPostgres reports whether any configured component needs a database connection.
func (c *AppConfig) UsesPostgres() bool {
	return c.AccountCache == AccountCachePostgres
}
