// Package memory provides in-process implementations of the storage ports.
// State lives for the lifetime of the process, which matches a
// session-scoped tier for a single-user agent.
package memory

import (
	"context"
	"sync"
)

// Storage is an in-memory ports.SessionStorage. It is safe for concurrent use.
type Storage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{values: make(map[string]string)}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Take returns and removes key in one step.
func (s *Storage) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok, nil
}

// Keys returns the number of stored keys.
func (s *Storage) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
