package memory

import (
	"context"
	"sync"
	"time"

	"github.com/target/mmk-ui-auth/internal/ports"
)

// AccountStore is an in-memory ports.AccountStore preserving insertion order.
type AccountStore struct {
	mu    sync.Mutex
	order []string
	byID  map[string]ports.CachedAccount
	now   func() time.Time
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID: make(map[string]ports.CachedAccount),
		now:  time.Now,
	}
}

func (s *AccountStore) List(_ context.Context) ([]ports.CachedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.CachedAccount, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Save inserts or replaces an account. Replacing keeps the original position.
func (s *AccountStore) Save(_ context.Context, acct ports.CachedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := acct.Account.HomeAccountID
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	acct.UpdatedAt = s.now()
	s.byID[id] = acct
	return nil
}

func (s *AccountStore) Delete(_ context.Context, homeAccountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[homeAccountID]; !ok {
		return nil
	}
	delete(s.byID, homeAccountID)
	for i, id := range s.order {
		if id == homeAccountID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
