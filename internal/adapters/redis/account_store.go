package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-ui-auth/internal/ports"
)

// AccountStore is a Redis-backed ports.AccountStore. Each account is a hash;
// a sorted set scored by a sequence number keeps insertion order. Entries do
// not expire.
type AccountStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewAccountStore creates an account store under prefix (default "mmk:accounts:").
func NewAccountStore(client redis.UniversalClient, prefix string) *AccountStore {
	if prefix == "" {
		prefix = "mmk:accounts:"
	}
	return &AccountStore{client: client, prefix: prefix, now: time.Now}
}

func (s *AccountStore) indexKey() string { return s.prefix + "index" }
func (s *AccountStore) seqKey() string   { return s.prefix + "seq" }
func (s *AccountStore) accountKey(id string) string {
	return s.prefix + "account:" + id
}

func (s *AccountStore) List(ctx context.Context) ([]ports.CachedAccount, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.accountKey(id), "data")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	out := make([]ports.CachedAccount, 0, len(ids))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Result()
		if errors.Is(cmdErr, redis.Nil) {
			continue
		}
		if cmdErr != nil {
			return nil, fmt.Errorf("redis hget %s: %w", ids[i], cmdErr)
		}
		var acct ports.CachedAccount
		if unmarshalErr := json.Unmarshal([]byte(data), &acct); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal account: %w", unmarshalErr)
		}
		out = append(out, acct)
	}
	return out, nil
}

// Save upserts acct. An existing account keeps its position.
func (s *AccountStore) Save(ctx context.Context, acct ports.CachedAccount) error {
	id := acct.Account.HomeAccountID
	if id == "" {
		return errors.New("home account ID cannot be empty")
	}
	acct.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{Score: float64(seq), Member: id})
		pipe.HSet(ctx, s.accountKey(id), "data", data, "updated_at", acct.UpdatedAt.Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save account: %w", err)
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, homeAccountID string) error {
	if homeAccountID == "" {
		return nil // Nothing to delete
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.indexKey(), homeAccountID)
		pipe.Del(ctx, s.accountKey(homeAccountID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete account: %w", err)
	}
	return nil
}
