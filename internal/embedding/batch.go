package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type batched struct {
	Embedder
	size        int
	concurrency int
}

// Batched splits document embedding into batches of size texts, running at
// most concurrency batches at once. Output order matches input order.
func Batched(e Embedder, size, concurrency int) Embedder {
	if size <= 0 {
		size = 32
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &batched{Embedder: e, size: size, concurrency: concurrency}
}

func (b *batched) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= b.size {
		return b.Embedder.EmbedDocuments(ctx, texts)
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		g.Go(func() error {
			vecs, err := b.Embedder.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if err := checkCount(b.Name(), end-start, len(vecs)); err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
