package embedding

import (
	"context"

	"docsearch/internal/metrics"
)

type instrumented struct {
	Embedder
}

// Instrumented counts backend calls and embedded texts in Prometheus.
func Instrumented(e Embedder) Embedder { return instrumented{Embedder: e} }

func (i instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := i.Embedder.EmbedDocuments(ctx, texts)
	metrics.EmbeddingRequests.WithLabelValues(i.Name(), "documents", metrics.Status(err)).Inc()
	if err == nil {
		metrics.EmbeddingTexts.WithLabelValues(i.Name()).Add(float64(len(texts)))
	}
	return vecs, err
}

func (i instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := i.Embedder.EmbedQuery(ctx, text)
	metrics.EmbeddingRequests.WithLabelValues(i.Name(), "query", metrics.Status(err)).Inc()
	if err == nil {
		metrics.EmbeddingTexts.WithLabelValues(i.Name()).Inc()
	}
	return v, err
}
