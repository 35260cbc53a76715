package memory

import (
	"context"
	"sync"

	"dispatch/internal/repository"
)

// Store is an in-process key-value store. It is the default backend and the
// one every test runs against.
//
// Go Learning Note — RWMutex:
// Reads take RLock so any number of readers proceed together; Set, Delete
// and Update take the exclusive Lock. The map itself is never handed out, so
// no caller can mutate it outside the lock.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewStore() *Store {
	return &Store{
		data: make(map[string]string),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	return value, exists, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Update holds the write lock while fn runs, so fn must not call back into
// the store.
func (s *Store) Update(ctx context.Context, key string, fn repository.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.data[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	if next != current {
		s.data[key] = next
	}
	return nil
}

func (s *Store) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
