package memory

import (
	"context"
	"fmt"
	"sync"

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/index"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Indexes live for the lifetime of the process.
type Storage struct {
	mu      sync.RWMutex
	indexes map[string]*index.Flat
}

var _ vectorstore.Store = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{indexes: map[string]*index.Flat{}} }

func (s *Storage) Create(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.ValidateName(name); err != nil {
		return err
	}
	dim, err := vectorstore.CheckBatch(chunks, vectors)
	if err != nil {
		return err
	}
	idx := index.NewFlat(dim)
	if err := idx.Add(chunks, vectors); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[name] = idx
	return nil
}

func (s *Storage) Add(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if _, err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	return idx.Add(chunks, vectors)
}

func (s *Storage) Search(_ context.Context, name string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return idx.Search(vector, k, filter)
}

func (s *Storage) Chunks(_ context.Context, name string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return idx.Chunks(), nil
}

func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

func (s *Storage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(name); err != nil {
		return err
	}
	delete(s.indexes, name)
	return nil
}

func (s *Storage) Close() error { return nil }

// lookup must be called with s.mu held.
func (s *Storage) lookup(name string) (*index.Flat, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return nil, err
	}
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	return idx, nil
}
