package store

import (
	"sync"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/hash"
)

// MemStore is an in-memory CellStore, safe for concurrent use. Used by
// tests and by peers that run without a durable on-disk store.
type MemStore struct {
	mu    sync.RWMutex
	cells map[hash.Hash]cell.Cell
}

func NewMemStore() *MemStore {
	return &MemStore{cells: make(map[hash.Hash]cell.Cell)}
}

func (s *MemStore) Put(c cell.Cell) hash.Hash {
	h := cell.HashOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cells[h]; !exists {
		s.cells[h] = c
	}
	return h
}

func (s *MemStore) Get(h hash.Hash) (cell.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[h]
	return c, ok
}

func (s *MemStore) Has(h hash.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cells[h]
	return ok
}

var _ CellStore = (*MemStore)(nil)
