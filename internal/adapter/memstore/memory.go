package memstore

import (
	"context"
	"fmt"
	"sync"

	"ragqa/internal/adapter/vecmath"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex is a process-local VectorIndex. Nothing survives the process;
// it backs tests and one-shot CLI runs.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	positions map[string]int
	entries   []port.IndexEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*collection)}
}

func (s *MemoryIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryIndex) CreateCollection(ctx context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("collection %q already exists with dimension %d", name, c.dimension)
		}
		return nil
	}
	s.collections[name] = &collection{dimension: dimension, positions: make(map[string]int)}
	return nil
}

func (s *MemoryIndex) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Upsert validates every entry before applying any of them.
func (s *MemoryIndex) Upsert(ctx context.Context, name string, entries []port.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	for _, e := range entries {
		if len(e.Vector) != c.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", e.ID, c.dimension, len(e.Vector))
		}
	}

	for _, e := range entries {
		if pos, ok := c.positions[e.ID]; ok {
			c.entries[pos] = e
			continue
		}
		c.positions[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return nil
}

func (s *MemoryIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]port.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", c.dimension, len(vector))
	}

	scored := make([]vecmath.Scored, len(c.entries))
	for i, e := range c.entries {
		scored[i] = vecmath.Scored{Pos: i, Score: vecmath.Cosine(vector, e.Vector)}
	}

	top := vecmath.TopK(scored, k)
	hits := make([]port.SearchHit, len(top))
	for i, sc := range top {
		e := c.entries[sc.Pos]
		hits[i] = port.SearchHit{ID: e.ID, Score: sc.Score, Payload: e.Payload}
	}
	return hits, nil
}

// Len returns the number of entries in a collection.
func (s *MemoryIndex) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.entries)
	}
	return 0
}
