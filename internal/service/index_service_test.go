package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/chunker"
	"docsearch/internal/embedding/hashing"
	"docsearch/internal/loader"
	"docsearch/internal/summarizer"
	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/memory"
)

func newService(t *testing.T) *IndexService {
	t.Helper()
	ch, err := chunker.NewRecursiveChunker(200, 40)
	require.NoError(t, err)
	emb, err := hashing.NewEmbedder(2048)
	require.NoError(t, err)
	return NewIndexService(
		loader.NewDirectoryLoader(),
		ch,
		emb,
		memory.NewStorage(),
		summarizer.NewFrequencySummarizer(),
		Options{K: 20, FilteredK: 3, SummaryMaxSentences: 2, TempDir: filepath.Join(t.TempDir(), "temp")},
		nil,
	)
}

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

var corpus = map[string]string{
	"qdrant.txt":  "Qdrant stores payloads next to vectors. Collections in Qdrant use cosine distance.",
	"bananas.txt": "Bananas grow in tropical climates. Farmers harvest bananas while still green.",
	"notes.md":    "markdown files are ignored by the loader",
}

func TestCreateIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	stats, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []string{"bananas.txt", "qdrant.txt"}, stats.Sources)
	assert.NotEmpty(t, stats.Summary)

	res, err := s.Search(ctx, "kb", "qdrant payloads", "")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "qdrant.txt", res[0].Chunk.Source())
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestSearchWithSourceFilter(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	res, err := s.Search(ctx, "kb", "qdrant payloads", "bananas.txt")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "bananas.txt", res[0].Chunk.Source())

	res, err = s.Search(ctx, "kb", "qdrant", "missing.pdf")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchFilteredKCapsResults(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	long := ""
	for i := 0; i < 30; i++ {
		long += "Vectors are compared by cosine similarity in every chunk of this file. "
	}
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, map[string]string{"long.txt": long}))
	require.NoError(t, err)

	res, err := s.Search(ctx, "kb", "cosine", "long.txt")
	require.NoError(t, err)
	assert.Len(t, res, 3)

	all, err := s.Search(ctx, "kb", "cosine", "")
	require.NoError(t, err)
	assert.Greater(t, len(all), 3)
	assert.LessOrEqual(t, len(all), 20)
}

func TestSearchUnescapesQuery(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	plain, err := s.Search(ctx, "kb", "tropical bananas", "")
	require.NoError(t, err)
	escaped, err := s.Search(ctx, "kb", "tropical%20bananas", "")
	require.NoError(t, err)
	assert.Equal(t, plain, escaped)

	_, err = s.Search(ctx, "kb", "100%", "")
	assert.NoError(t, err)

	trailing, err := s.Search(ctx, "kb", "tropical%20bananas%", "")
	require.NoError(t, err)
	assert.Equal(t, plain, trailing)
}

func TestUnescape(t *testing.T) {
	for in, want := range map[string]string{
		"a%20b":               "a b",
		"tropical%20bananas%": "tropical bananas%",
		"50%20off%zz":         "50 off%zz",
		"100%":                "100%",
		"%4":                  "%4",
		"caf%C3%A9":           "café",
		"%e2%82%ac5":          "€5",
		"bad%FFbyte":          "bad\uFFFDbyte",
		"no escapes":          "no escapes",
		"a+b":                 "a+b",
	} {
		assert.Equal(t, want, unescape(in), in)
	}
}

func TestSearchFallsBackToLexicalRanking(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, map[string]string{
		"a.txt": "the cat sat",
		"b.txt": "dogs bark loudly",
	}))
	require.NoError(t, err)

	res, err := s.Search(ctx, "kb", "the", "")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a.txt", res[0].Chunk.Source())
	assert.Greater(t, res[0].Score, 0.0)
	assert.Zero(t, res[1].Score)
}

func TestCreateIndexErrors(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.CreateIndex(ctx, "kb", writeDir(t, map[string]string{"notes.md": "nothing to load"}))
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = s.CreateIndex(ctx, "kb", writeDir(t, map[string]string{"blank.txt": "   \n  "}))
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = s.CreateIndex(ctx, "../kb", writeDir(t, corpus))
	assert.ErrorIs(t, err, vectorstore.ErrInvalidName)
}

func TestAddFiles(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.AddFiles(ctx, "kb", writeDir(t, corpus))
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)

	_, err = s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	_, err = s.AddFiles(ctx, "kb", writeDir(t, map[string]string{"notes.md": "x"}))
	assert.ErrorIs(t, err, ErrNoDocuments)

	stats, err := s.AddFiles(ctx, "kb", writeDir(t, map[string]string{"gophers.txt": "Gophers dig tunnels."}))
	require.NoError(t, err)
	assert.Equal(t, []string{"gophers.txt"}, stats.Sources)

	sources, err := s.ListSources(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"bananas.txt", "gophers.txt", "qdrant.txt"}, sources)
}

func TestExtractAndSaveTexts(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	texts, err := s.ExtractTexts(ctx, "kb", "qdrant.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{corpus["qdrant.txt"]}, texts)

	path, saved, err := s.SaveTextToTemp(ctx, "kb", "qdrant.txt")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "qdrant.txt.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corpus["qdrant.txt"], string(data))

	_, saved, err = s.SaveTextToTemp(ctx, "kb", "unknown.pdf")
	require.NoError(t, err)
	assert.False(t, saved)

	_, _, err = s.SaveTextToTemp(ctx, "missing", "qdrant.txt")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestTempFileName(t *testing.T) {
	assert.Equal(t, "a_b_c.pdf.txt", TempFileName(`a/b\c.pdf`))
}

func TestDeleteIndex(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	require.NoError(t, s.DeleteIndex(ctx, "kb"))
	ok, err := s.Exists(ctx, "kb")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Search(ctx, "kb", "qdrant", "")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
	assert.ErrorIs(t, s.DeleteIndex(ctx, "kb"), vectorstore.ErrNotFound)
}

func TestConcurrentSearchAndAdd(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.CreateIndex(ctx, "kb", writeDir(t, corpus))
	require.NoError(t, err)

	dirs := make([]string, 4)
	for i := range dirs {
		dirs[i] = writeDir(t, map[string]string{"extra.txt": "More text about cosine vectors."})
	}

	var wg sync.WaitGroup
	for _, dir := range dirs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.AddFiles(ctx, "kb", dir)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, "kb", "cosine", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	chunks, err := s.store.Chunks(ctx, "kb")
	require.NoError(t, err)
	assert.Len(t, chunks, 2+len(dirs))
}
