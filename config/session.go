package config

import (
	"fmt"
	"strings"
	"time"
)

// StorageBackend selects the session storage implementation.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageRedis  StorageBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (s *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*s = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: memory, redis)", v)
	}
}

// AccountCacheBackend selects where the identity provider caches accounts and tokens.
type AccountCacheBackend string

const (
	AccountCacheMemory   AccountCacheBackend = "memory"
	AccountCacheRedis    AccountCacheBackend = "redis"
	AccountCachePostgres AccountCacheBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for AccountCacheBackend.
func (a *AccountCacheBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis", "postgres":
		*a = AccountCacheBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid AccountCacheBackend: %q (valid options: memory, redis, postgres)", v)
	}
}

// SessionConfig controls the session state machine and its storage.
type SessionConfig struct {
	// HomePath is where logout lands and which path is never tracked.
	HomePath string         `env:"HOME_PATH" envDefault:"/"`
	Storage  StorageBackend `env:"STORAGE"   envDefault:"memory"`
	// ID namespaces session keys; a random one is generated when empty.
	ID  string        `env:"ID"`
	TTL time.Duration `env:"TTL" envDefault:"8h"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	c.HomePath = strings.TrimSpace(c.HomePath)
	if c.HomePath == "" || !strings.HasPrefix(c.HomePath, "/") {
		c.HomePath = "/" + c.HomePath
	}
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.TTL <= 0 {
		c.TTL = 8 * time.Hour
	}
}
