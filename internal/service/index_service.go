package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/metrics"
	"docsearch/internal/vectorstore"
)

// ErrNoDocuments is returned when an ingest directory holds no loadable text.
var ErrNoDocuments = errors.New("no documents found")

// Options holds the tunables of the index service.
type Options struct {
	K                   int
	FilteredK           int
	SummaryMaxSentences int
	TempDir             string
}

// IngestStats describes the outcome of CreateIndex and AddFiles.
type IngestStats struct {
	Documents int
	Chunks    int
	Sources   []string
	Summary   string
}

// IndexService manages named vector indexes: it loads, splits and embeds
// documents, and answers similarity queries against the stored chunks.
type IndexService struct {
	loader     domain.Loader
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      vectorstore.Store
	summarizer domain.Summarizer
	opts       Options
	logger     *zap.Logger
	locks      *keyedLocks
}

func NewIndexService(loader domain.Loader, chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Store, summarizer domain.Summarizer, opts Options, logger *zap.Logger) *IndexService {
	if opts.K <= 0 {
		opts.K = 20
	}
	if opts.FilteredK <= 0 {
		opts.FilteredK = 3
	}
	if opts.TempDir == "" {
		opts.TempDir = "temp"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexService{
		loader:     loader,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
		locks:      newKeyedLocks(),
	}
}

// CreateIndex builds the named index from every supported file in dir,
// replacing any index of the same name.
func (s *IndexService) CreateIndex(ctx context.Context, name, dir string) (IngestStats, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return IngestStats{}, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	chunks, vectors, stats, err := s.prepare(ctx, dir)
	if err != nil {
		return IngestStats{}, err
	}
	if err := s.store.Create(ctx, name, chunks, vectors); err != nil {
		return IngestStats{}, fmt.Errorf("create index %s: %w", name, err)
	}
	s.record("create", name, stats)
	return stats, nil
}

// AddFiles embeds the files of dir into an existing index.
func (s *IndexService) AddFiles(ctx context.Context, name, dir string) (IngestStats, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return IngestStats{}, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	ok, err := s.store.Exists(ctx, name)
	if err != nil {
		return IngestStats{}, err
	}
	if !ok {
		return IngestStats{}, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	chunks, vectors, stats, err := s.prepare(ctx, dir)
	if err != nil {
		return IngestStats{}, err
	}
	if err := s.store.Add(ctx, name, chunks, vectors); err != nil {
		return IngestStats{}, fmt.Errorf("extend index %s: %w", name, err)
	}
	s.record("add", name, stats)
	return stats, nil
}

// Search embeds query and returns the closest chunks. With a source, only
// chunks of that source are considered and fewer results are returned.
func (s *IndexService) Search(ctx context.Context, name, query, source string) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(name)
	defer unlock()

	start := time.Now()
	k, filter := s.opts.K, map[string]string(nil)
	if source != "" {
		k, filter = s.opts.FilteredK, map[string]string{domain.MetaSource: source}
	}
	defer func() {
		metrics.SearchDuration.WithLabelValues(strconv.FormatBool(filter != nil)).Observe(time.Since(start).Seconds())
	}()

	query = unescape(query)
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		// Nothing to compare by angle (e.g. a stopword-only query with the
		// hashing embedder); rank by term overlap instead.
		chunks, err := s.store.Chunks(ctx, name)
		if err != nil {
			return nil, err
		}
		return lexicalSearch(query, chunks, k, filter), nil
	}
	return s.store.Search(ctx, name, vec, k, filter)
}

// ListSources returns the distinct source values of an index, sorted.
func (s *IndexService) ListSources(ctx context.Context, name string) ([]string, error) {
	chunks, err := s.chunks(ctx, name)
	if err != nil {
		return nil, err
	}
	return sources(chunks), nil
}

// ExtractTexts returns the chunk texts of source in insertion order.
func (s *IndexService) ExtractTexts(ctx context.Context, name, source string) ([]string, error) {
	chunks, err := s.chunks(ctx, name)
	if err != nil {
		return nil, err
	}
	texts := []string{}
	for _, c := range chunks {
		if c.Source() == source {
			texts = append(texts, c.Text)
		}
	}
	return texts, nil
}

// SaveTextToTemp writes the texts of source to a file in the temp directory.
// It reports saved=false, and writes nothing, when the source has no texts.
func (s *IndexService) SaveTextToTemp(ctx context.Context, name, source string) (string, bool, error) {
	texts, err := s.ExtractTexts(ctx, name, source)
	if err != nil {
		return "", false, err
	}
	if len(texts) == 0 {
		return "", false, nil
	}
	if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(s.opts.TempDir, TempFileName(source))
	if err := os.WriteFile(path, []byte(strings.Join(texts, "\n")), 0o644); err != nil {
		return "", false, fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("texts saved", zap.String("index", name), zap.String("source", source), zap.String("path", path), zap.Int("chunks", len(texts)))
	return path, true, nil
}

// DeleteIndex removes the named index.
func (s *IndexService) DeleteIndex(ctx context.Context, name string) error {
	if err := vectorstore.ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("index deleted", zap.String("index", name))
	return nil
}

// Exists reports whether the named index exists.
func (s *IndexService) Exists(ctx context.Context, name string) (bool, error) {
	return s.store.Exists(ctx, name)
}

// TempFileName maps a source to the file name used by SaveTextToTemp.
func TempFileName(source string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(source) + ".txt"
}

func (s *IndexService) chunks(ctx context.Context, name string) ([]domain.Chunk, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(name)
	defer unlock()
	return s.store.Chunks(ctx, name)
}

// prepare loads, splits and embeds every document of dir.
func (s *IndexService) prepare(ctx context.Context, dir string) ([]domain.Chunk, [][]float32, IngestStats, error) {
	documents, err := s.loader.Load(dir)
	if err != nil {
		return nil, nil, IngestStats{}, err
	}

	var (
		chunks []domain.Chunk
		texts  []string
		corpus strings.Builder
	)
	for _, d := range documents {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			return nil, nil, IngestStats{}, fmt.Errorf("split %s: %w", d.ID, err)
		}
		for _, c := range cs {
			chunks = append(chunks, c)
			texts = append(texts, c.Text)
		}
		corpus.WriteString(d.Content)
		corpus.WriteString("\n")
	}
	if len(chunks) == 0 {
		return nil, nil, IngestStats{}, ErrNoDocuments
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, nil, IngestStats{}, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, IngestStats{}, fmt.Errorf("embed documents: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	stats := IngestStats{Documents: len(documents), Chunks: len(chunks), Sources: sources(chunks)}
	if s.summarizer != nil {
		if stats.Summary, err = s.summarizer.Summarize(corpus.String(), s.opts.SummaryMaxSentences); err != nil {
			s.logger.Warn("summarize ingest", zap.Error(err))
		}
	}
	return chunks, vectors, stats, nil
}

func (s *IndexService) record(operation, name string, stats IngestStats) {
	metrics.DocumentsIngested.WithLabelValues(operation).Add(float64(stats.Documents))
	metrics.ChunksIngested.WithLabelValues(operation).Add(float64(stats.Chunks))
	s.logger.Info("index "+operation,
		zap.String("index", name),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Strings("sources", stats.Sources),
	)
}

func sources(chunks []domain.Chunk) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, c := range chunks {
		src := c.Source()
		if _, ok := seen[src]; ok || src == "" {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// unescape decodes every well-formed %XX sequence and keeps malformed ones
// as they are. Decoded bytes that are not valid UTF-8 become U+FFFD.
func unescape(q string) string {
	if !strings.Contains(q, "%") {
		return q
	}
	b := make([]byte, 0, len(q))
	for i := 0; i < len(q); i++ {
		if q[i] == '%' && i+2 < len(q) && isHex(q[i+1]) && isHex(q[i+2]) {
			b = append(b, unhex(q[i+1])<<4|unhex(q[i+2]))
			i += 2
			continue
		}
		b = append(b, q[i])
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
