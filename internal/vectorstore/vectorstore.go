package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"docsearch/internal/domain"
)

var (
	// ErrNotFound is returned when the named index does not exist.
	ErrNotFound = errors.New("vector index not found")
	// ErrInvalidName is returned for index names that cannot be used as a directory or collection name.
	ErrInvalidName = errors.New("invalid index name")
	// ErrDimensionMismatch is returned when a vector does not match the dimension of its index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Store persists named vector indexes and answers similarity queries against them.
type Store interface {
	// Create builds the named index from scratch, replacing any existing one.
	Create(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error
	// Add extends an existing index. It fails with ErrNotFound when the index is absent.
	Add(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error
	// Search returns at most k chunks ordered by descending cosine similarity.
	// Only chunks whose metadata matches every filter entry are considered.
	Search(ctx context.Context, name string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error)
	// Chunks returns every stored chunk in insertion order.
	Chunks(ctx context.Context, name string) ([]domain.Chunk, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]{0,63}$`)

// ValidateName checks that name is safe to use as a directory or collection name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CheckBatch validates a chunk/vector batch and returns its common dimension.
func CheckBatch(chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return 0, errors.New("no vectors to store")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}
