package redis

// Package redis provides Redis-based adapters for the auth session.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long a redirect round trip may take before the
// stored values expire.
const DefaultSessionTTL = 8 * time.Hour

// SessionStorage is a Redis-backed ports.SessionStorage. Every session gets
// its own key namespace; keys expire after the TTL of their last write.
type SessionStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// SessionStorageOptions configures SessionStorage.
type SessionStorageOptions struct {
	Namespace string        // Required, usually the session ID
	Prefix    string        // Optional, defaults to "mmk:session:"
	TTL       time.Duration // Optional, defaults to DefaultSessionTTL
}

// NewSessionStorage creates a Redis session storage scoped to opts.Namespace.
func NewSessionStorage(client redis.UniversalClient, opts SessionStorageOptions) (*SessionStorage, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("namespace is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "mmk:session:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStorage{
		client: client,
		prefix: prefix + opts.Namespace + ":",
		ttl:    ttl,
	}, nil
}

func (s *SessionStorage) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (s *SessionStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SessionStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Take reads and deletes key in one round trip (GETDEL).
func (s *SessionStorage) Take(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis getdel: %w", err)
	}
	return val, true, nil
}
