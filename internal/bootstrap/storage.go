package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/adapters/memory"
	redisadapter "github.com/target/mmk-ui-auth/internal/adapters/redis"
	"github.com/target/mmk-ui-auth/internal/data"
	"github.com/target/mmk-ui-auth/internal/data/cryptoutil"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// StorageDeps holds the connections the storage tiers may use.
type StorageDeps struct {
	Config    *config.AppConfig
	Redis     redis.UniversalClient // nil unless the config uses redis
	DB        *sql.DB               // nil unless the config uses postgres
	Encryptor cryptoutil.Encryptor
}

// BuildSessionStorage returns the session-scoped storage shared by the
// redirect tracker and the provider. Keys live under a per-session namespace.
//
//nolint:ireturn // backend chosen by SESSION_STORAGE.
func BuildSessionStorage(deps StorageDeps) (ports.SessionStorage, error) {
	cfg := deps.Config
	switch cfg.Session.Storage {
	case config.StorageMemory, "":
		return memory.NewStorage(), nil
	case config.StorageRedis:
		if deps.Redis == nil {
			return nil, errors.New("session storage: redis client is required")
		}
		namespace := cfg.Session.ID
		if namespace == "" {
			namespace = uuid.NewString()
		}
		return redisadapter.NewSessionStorage(deps.Redis, redisadapter.SessionStorageOptions{
			Namespace: namespace,
			Prefix:    cfg.Redis.KeyPrefix + "session:",
			TTL:       cfg.Session.TTL,
		})
	default:
		return nil, fmt.Errorf("session storage: unsupported backend %q", cfg.Session.Storage)
	}
}

// BuildAccountStore returns the durable account cache selected by ACCOUNT_CACHE.
//
//nolint:ireturn // backend chosen by ACCOUNT_CACHE.
func BuildAccountStore(deps StorageDeps) (ports.AccountStore, error) {
	cfg := deps.Config
	switch cfg.AccountCache {
	case config.AccountCacheMemory, "":
		return memory.NewAccountStore(), nil
	case config.AccountCacheRedis:
		if deps.Redis == nil {
			return nil, errors.New("account cache: redis client is required")
		}
		return redisadapter.NewAccountStore(deps.Redis, cfg.Redis.KeyPrefix+"accounts:"), nil
	case config.AccountCachePostgres:
		if deps.DB == nil {
			return nil, errors.New("account cache: database is required")
		}
		enc := deps.Encryptor
		if enc == nil {
			enc = &cryptoutil.NoopEncryptor{}
		}
		return data.NewAccountCacheRepo(deps.DB, enc), nil
	default:
		return nil, fmt.Errorf("account cache: unsupported backend %q", cfg.AccountCache)
	}
}
