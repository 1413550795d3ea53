package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cached struct {
	Embedder
	queries *lru.Cache[string, []float32]
}

// Cached memoizes query embeddings in an LRU of the given size.
// A non-positive size disables caching and returns e unchanged.
func Cached(e Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return e, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &cached{Embedder: e, queries: c}, nil
}

func (c *cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.queries.Get(text); ok {
		return append([]float32(nil), v...), nil
	}
	v, err := c.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.queries.Add(text, append([]float32(nil), v...))
	return v, nil
}
