package domain

import (
	"context"
	"fmt"
)

// Metadata keys shared by loaders, stores and the API.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// Document represents a single unit of text produced by a loader.
// A PDF yields one Document per page, other formats one per file.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Source returns the source metadata value, or "" when absent.
func (d Document) Source() string {
	s, _ := d.Metadata[MetaSource].(string)
	return s
}

// Chunk is a part of a document used for indexing.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Metadata   map[string]any
}

// Source returns the source metadata value, or "" when absent.
func (c Chunk) Source() string {
	s, _ := c.Metadata[MetaSource].(string)
	return s
}

// Matches reports whether every filter key is present in the chunk metadata
// with the same value. An empty filter matches everything.
func (c Chunk) Matches(filter map[string]string) bool {
	for k, want := range filter {
		v, ok := c.Metadata[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Loader turns the files of a directory into documents.
type Loader interface {
	Load(dir string) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into vectors.
type Embedder interface {
	Name() string
	// Dimension is 0 until the backend has produced a vector, for backends
	// whose size is only known from the model.
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
