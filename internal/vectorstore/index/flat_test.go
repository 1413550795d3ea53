package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
)

func chunk(id, source string) domain.Chunk {
	return domain.Chunk{ID: id, Text: id, Metadata: map[string]any{domain.MetaSource: source}}
}

func fixture(t *testing.T) *Flat {
	t.Helper()
	f := NewFlat(2)
	require.NoError(t, f.Add(
		[]domain.Chunk{chunk("east", "a.txt"), chunk("north", "b.txt"), chunk("northeast", "a.txt"), chunk("zero", "b.txt")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {0, 0}},
	))
	return f
}

func TestSearchOrdersByCosine(t *testing.T) {
	f := fixture(t)

	res, err := f.Search([]float32{2, 0.1}, 3, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "east", res[0].Chunk.ID)
	assert.Equal(t, "northeast", res[1].Chunk.ID)
	assert.Equal(t, "north", res[2].Chunk.ID)
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestSearchFilterIsExhaustive(t *testing.T) {
	f := fixture(t)

	res, err := f.Search([]float32{0, 1}, 10, map[string]string{domain.MetaSource: "b.txt"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "north", res[0].Chunk.ID)
	assert.Equal(t, "zero", res[1].Chunk.ID)
	assert.Zero(t, res[1].Score)

	res, err = f.Search([]float32{0, 1}, 10, map[string]string{domain.MetaSource: "missing"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchDimensionMismatch(t *testing.T) {
	f := fixture(t)
	_, err := f.Search([]float32{1, 2, 3}, 1, nil)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	err = f.Add([]domain.Chunk{chunk("x", "c")}, [][]float32{{1}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	assert.Equal(t, 4, f.Len())
}

func TestChunksKeepInsertionOrder(t *testing.T) {
	f := fixture(t)
	var ids []string
	for _, c := range f.Chunks() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"east", "north", "northeast", "zero"}, ids)
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{1.5, -2, 0, 3.25}
	b := EncodeVector(in)
	assert.Len(t, b, 16)

	out, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
