// Package storetest holds behaviour checks shared by every vectorstore.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
)

// Chunk builds a chunk with the given id and source metadata.
func Chunk(id, source string, page int) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: source,
		Text:       "text of " + id,
		Metadata:   map[string]any{domain.MetaSource: source, domain.MetaPage: page},
	}
}

// Run exercises the Store contract against stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) vectorstore.Store) {
	ctx := context.Background()

	seed := func(t *testing.T, s vectorstore.Store, name string) {
		t.Helper()
		require.NoError(t, s.Create(ctx, name,
			[]domain.Chunk{Chunk("a1", "a.pdf", 0), Chunk("b1", "b.txt", 0), Chunk("a2", "a.pdf", 1)},
			[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
		))
	}

	t.Run("CreateAndSearch", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")

		res, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a1", res[0].Chunk.ID)
		assert.Equal(t, "a2", res[1].Chunk.ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-5)
		assert.Equal(t, "a.pdf", res[0].Chunk.Source())
		assert.Equal(t, "text of a1", res[0].Chunk.Text)
	})

	t.Run("FilterBySource", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")

		res, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 3, map[string]string{domain.MetaSource: "b.txt"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "b1", res[0].Chunk.ID)
	})

	t.Run("AddExtendsIndex", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")

		require.NoError(t, s.Add(ctx, "docs", []domain.Chunk{Chunk("c1", "c.docx", 0)}, [][]float32{{0, 0, 1}}))
		chunks, err := s.Chunks(ctx, "docs")
		require.NoError(t, err)
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		assert.Equal(t, []string{"a1", "b1", "a2", "c1"}, ids)

		res, err := s.Search(ctx, "docs", []float32{0, 0, 1}, 1, nil)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "c1", res[0].Chunk.ID)
	})

	t.Run("CreateReplaces", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")
		require.NoError(t, s.Create(ctx, "docs", []domain.Chunk{Chunk("only", "x.txt", 0)}, [][]float32{{1, 1}}))

		chunks, err := s.Chunks(ctx, "docs")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "only", chunks[0].ID)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")

		err := s.Add(ctx, "docs", []domain.Chunk{Chunk("bad", "x", 0)}, [][]float32{{1, 2}})
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
		_, err = s.Search(ctx, "docs", []float32{1}, 1, nil)
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	})

	t.Run("MissingIndex", func(t *testing.T) {
		s := newStore(t)

		ok, err := s.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Search(ctx, "nope", []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, vectorstore.ErrNotFound)
		_, err = s.Chunks(ctx, "nope")
		assert.ErrorIs(t, err, vectorstore.ErrNotFound)
		err = s.Add(ctx, "nope", []domain.Chunk{Chunk("x", "x", 0)}, [][]float32{{1}})
		assert.ErrorIs(t, err, vectorstore.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "nope"), vectorstore.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "docs")
		seed(t, s, "other")

		require.NoError(t, s.Delete(ctx, "docs"))
		ok, err := s.Exists(ctx, "docs")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.Exists(ctx, "other")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("InvalidName", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"../escape", ".hidden", ""} {
			err := s.Create(ctx, name, []domain.Chunk{Chunk("x", "x", 0)}, [][]float32{{1}})
			assert.ErrorIs(t, err, vectorstore.ErrInvalidName, fmt.Sprintf("name %q", name))
		}
	})
}
