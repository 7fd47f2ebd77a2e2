package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
)

// MemoryStore is an in-process Store used by tests and by service-level
// scenarios that do not need durability.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: storage key %q", common.ErrNotFound, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) Close() error { return nil }

// Corrupt flips one byte of the stored value, bypassing the write-once rule.
// Test hook for integrity-check coverage.
func (s *MemoryStore) Corrupt(key string, offset int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok || offset >= len(data) {
		return false
	}
	data[offset] ^= 0x01
	return true
}

// Delete removes a key. Test hook for missing-chunk corruption scenarios.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
}
