package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/chunker"
	"docsearch/internal/config"
	"docsearch/internal/domain"
	"docsearch/internal/embedding"
	"docsearch/internal/embedding/hashing"
	"docsearch/internal/embedding/ollama"
	"docsearch/internal/embedding/openai"
	"docsearch/internal/loader"
	"docsearch/internal/service"
	"docsearch/internal/summarizer"
	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/memory"
	"docsearch/internal/vectorstore/qdrant"
	"docsearch/internal/vectorstore/sqlite"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	svc    *service.IndexService
	store  vectorstore.Store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close vector store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func newApp(cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.Paths.Docs, cfg.Paths.Temp} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	svc := service.NewIndexService(loader.NewDirectoryLoader(), ch, emb, st, summarizer.NewFrequencySummarizer(), service.Options{
		K:                   cfg.Search.K,
		FilteredK:           cfg.Search.FilteredK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		TempDir:             cfg.Paths.Temp,
	}, logger)
	logger.Info("components ready",
		zap.String("chunker", cfg.Chunker.Type),
		zap.String("embedder", emb.Name()),
		zap.String("vector_store", cfg.VectorStore.Type))
	return &app{cfg: cfg, logger: logger, svc: svc, store: st}, nil
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		e, err := hashing.NewEmbedder(dim)
		if err != nil {
			return nil, err
		}
		base = e
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		base = c
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		c, err := ollama.NewClient(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			Timeout:    time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ollama.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		base = c
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}

	emb := embedding.Batched(embedding.Instrumented(base), cfg.BatchSize, cfg.Concurrency)
	if cfg.Normalize {
		emb = embedding.Normalized(emb)
	}
	return embedding.Cached(emb, cfg.CacheSize)
}

func newStore(cfg *config.AppConfig, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "sqlite", "":
		return sqlite.New(cfg.Paths.Database, logger)
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		var apiKey string
		if q.APIKeyEnv != "" {
			apiKey = os.Getenv(q.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			Host:             q.Host,
			Port:             q.Port,
			APIKey:           apiKey,
			UseTLS:           q.UseTLS,
			CollectionPrefix: q.CollectionPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
