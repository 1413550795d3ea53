package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "recursive", cfg.Chunker.Type)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 20, cfg.Search.K)
	assert.Equal(t, 3, cfg.Search.FilteredK)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	require.NotNil(t, cfg.Embedder.Hashing)
	assert.Equal(t, 768, cfg.Embedder.Hashing.Dimension)
	assert.NoError(t, cfg.Validate())
}

func TestParseOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("DOCSEARCH_TEST_QDRANT_HOST", "qdrant.internal")

	cfg, err := Parse([]byte(`
server:
  addr: ":9999"
embedder:
  type: openai
vector_store:
  type: qdrant
  qdrant:
    host: ${DOCSEARCH_TEST_QDRANT_HOST}
search:
  k: 7
`))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Search.K)
	assert.Equal(t, 3, cfg.Search.FilteredK)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "jinaai/jina-embeddings-v2-base-code", cfg.Embedder.OpenAI.Model)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, err := Parse([]byte(`
chunker:
  chunk_size: 100
  chunk_overlap: 100
embedder:
  type: word2vec
vector_store:
  type: faiss
auth:
  enabled: true
  username: ""
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
	assert.Contains(t, err.Error(), "word2vec")
	assert.Contains(t, err.Error(), "faiss")
	assert.Contains(t, err.Error(), "auth enabled")
}

func TestAuthPasswordPrefersEnv(t *testing.T) {
	t.Setenv("DOCSEARCH_TEST_PASSWORD", "s3cret")
	c := AuthConfig{Password: "admin", PasswordEnv: "DOCSEARCH_TEST_PASSWORD"}
	assert.Equal(t, "s3cret", c.AuthPassword())

	c.PasswordEnv = "DOCSEARCH_TEST_UNSET"
	assert.Equal(t, "admin", c.AuthPassword())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Search.K = 42

	require.NoError(t, Save(path, cfg))
	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.K)
}
