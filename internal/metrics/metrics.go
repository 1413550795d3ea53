package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsearch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"route", "method"},
	)

	// Ingestion metrics
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_documents_ingested_total",
			Help: "Total number of loaded documents (pages for PDFs)",
		},
		[]string{"operation"}, // create/add
	)

	ChunksIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_chunks_ingested_total",
			Help: "Total number of chunks written to indexes",
		},
		[]string{"operation"},
	)

	// Search metrics
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsearch_search_duration_seconds",
			Help:    "Similarity search duration in seconds, embedding included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"filtered"},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_embedding_requests_total",
			Help: "Total number of embedding backend calls",
		},
		[]string{"embedder", "kind", "status"}, // kind: documents/query
	)

	EmbeddingTexts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_embedding_texts_total",
			Help: "Total number of texts sent to the embedding backend",
		},
		[]string{"embedder"},
	)
)

// Status returns the label value for an operation outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
