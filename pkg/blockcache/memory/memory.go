// Package memory implements an in-memory block cache store.
//
// Intended for single-node runs, the memory-only tier, and tests.
package memory

import (
	"context"
	"sync"

	"github.com/xystevensun/spark-private/pkg/blockcache"
)

// MemoryStore is a thread-safe in-memory implementation of blockcache.Store.
// The tier hint is accepted but ignored: everything lives in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64][]byte
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64][]byte),
	}
}

// Put stores a copy of data under id.
func (s *MemoryStore) Put(ctx context.Context, id int64, data []byte, tier blockcache.Tier) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return blockcache.ErrStoreClosed
	}

	// Copy so callers cannot mutate cached bytes afterwards.
	buf := make([]byte, len(data))
	copy(buf, data)
	s.entries[id] = buf
	return nil
}

// Get returns a copy of the data cached under id.
func (s *MemoryStore) Get(ctx context.Context, id int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, blockcache.ErrStoreClosed
	}

	data, ok := s.entries[id]
	if !ok {
		return nil, blockcache.ErrNotFound
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Remove deletes the entry for id, if present.
func (s *MemoryStore) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return blockcache.ErrStoreClosed
	}

	delete(s.entries, id)
	return nil
}

// Close marks the store closed and drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}

// Len returns the number of cached entries. Used by tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ blockcache.Store = (*MemoryStore)(nil)
