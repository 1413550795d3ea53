package embedding

import (
	"context"
	"fmt"
	"math"

	"docsearch/internal/domain"
)

// Embedder converts free text into vectors.
type Embedder = domain.Embedder

// Normalize scales v to unit L2 length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

type normalized struct {
	Embedder
}

// Normalized wraps e so every returned vector has unit length.
func Normalized(e Embedder) Embedder { return normalized{Embedder: e} }

func (n normalized) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = Normalize(vecs[i])
	}
	return vecs, nil
}

func (n normalized) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := n.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// checkCount guards against backends that silently drop inputs.
func checkCount(name string, want, got int) error {
	if want != got {
		return fmt.Errorf("%s: expected %d embeddings, got %d", name, want, got)
	}
	return nil
}
