package storage

import (
	"context"
	"sync"

	"github.com/dosesegura/dose-segura/interfaces"
)

// Compile-time check to ensure MemoryStore implements KeyValueStore
var _ interfaces.KeyValueStore = (*MemoryStore)(nil)

// MemoryStore is a process-local key-value store, used when no state
// database is configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
