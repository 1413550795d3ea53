// Package index provides an exhaustive cosine-similarity index shared by the
// in-process and SQLite stores.
package index

import (
	"fmt"
	"math"
	"sort"

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
)

// Flat scores every stored vector against the query. Magnitudes are
// precomputed on insert so a query costs one dot product per vector.
type Flat struct {
	dim    int
	chunks []domain.Chunk
	vecs   [][]float32
	mags   []float64
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat { return &Flat{dim: dim} }

// Dimension returns the vector size accepted by the index.
func (f *Flat) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.vecs) }

// Add appends chunks and their vectors.
func (f *Flat) Add(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("index: chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has %d values, index has %d", vectorstore.ErrDimensionMismatch, i, len(v), f.dim)
		}
	}
	for i, v := range vectors {
		f.chunks = append(f.chunks, chunks[i])
		f.vecs = append(f.vecs, v)
		f.mags = append(f.mags, magnitude(v))
	}
	return nil
}

// Chunks returns the stored chunks in insertion order.
func (f *Flat) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), f.chunks...)
}

// Search returns the k best matches among the chunks accepted by filter.
// Zero-magnitude vectors score 0 rather than being dropped.
func (f *Flat) Search(query []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", vectorstore.ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	qm := magnitude(query)

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0, len(f.vecs))
	for i, v := range f.vecs {
		if !f.chunks[i].Matches(filter) {
			continue
		}
		var s float64
		if qm > 0 && f.mags[i] > 0 {
			s = dot(query, v) / (qm * f.mags[i])
		}
		if math.IsNaN(s) {
			s = 0
		}
		hits = append(hits, scored{idx: i, score: s})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]domain.SearchResult, k)
	for n := 0; n < k; n++ {
		out[n] = domain.SearchResult{Chunk: f.chunks[hits[n].idx], Score: hits[n].score}
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func magnitude(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
