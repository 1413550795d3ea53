package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
)

func TestRecursiveChunkerKeepsShortTextWhole(t *testing.T) {
	c, err := NewRecursiveChunker(1000, 200)
	require.NoError(t, err)

	assert.Equal(t, []string{"para one.\n\npara two."}, c.SplitText("  para one.\n\npara two.\n"))
}

func TestRecursiveChunkerWordWindows(t *testing.T) {
	c, err := NewRecursiveChunker(10, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, c.SplitText("aaaa bbbb cccc dddd"))

	c, err = NewRecursiveChunker(10, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa bbbb", "bbbb cccc", "cccc dddd"}, c.SplitText("aaaa bbbb cccc dddd"))
}

func TestRecursiveChunkerFallsBackToCharacters(t *testing.T) {
	c, err := NewRecursiveChunker(10, 0)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 3)
	assert.Equal(t, []string{"abcdefghij", "abcdefghij", "abcdefghij"}, c.SplitText(text))
}

func TestRecursiveChunkerRespectsSizeOnProse(t *testing.T) {
	c, err := NewRecursiveChunker(120, 30)
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Vectores y documentos se indexan juntos para búsquedas rápidas. ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	chunks := c.SplitText(b.String())
	require.Greater(t, len(chunks), 5)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 120)
		assert.Equal(t, strings.TrimSpace(ch), ch)
		assert.NotEmpty(t, ch)
	}
}

func TestRecursiveChunkerRejectsBadSettings(t *testing.T) {
	_, err := NewRecursiveChunker(0, 0)
	assert.Error(t, err)
	_, err = NewRecursiveChunker(100, 100)
	assert.Error(t, err)
}

func TestChunkCopiesMetadata(t *testing.T) {
	c, err := NewRecursiveChunker(10, 0)
	require.NoError(t, err)

	doc := domain.Document{
		ID:       "manual.pdf#0",
		Content:  "aaaa bbbb cccc",
		Metadata: map[string]any{domain.MetaSource: "manual.pdf", domain.MetaPage: 0},
	}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "manual.pdf#0:1", chunks[1].ID)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "manual.pdf", chunks[1].Source())

	chunks[0].Metadata["extra"] = true
	_, shared := doc.Metadata["extra"]
	assert.False(t, shared)
}

func TestSentenceChunkerOverlap(t *testing.T) {
	c := NewSentenceChunker(3, 1)
	doc := domain.Document{ID: "d", Content: "One. Two. Three. Four. Five. Six. Seven."}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "One. Two. Three.", chunks[0].Text)
	assert.Equal(t, "Three. Four. Five.", chunks[1].Text)
	assert.Equal(t, "Five. Six. Seven.", chunks[2].Text)
}

func TestSentenceChunkerEmpty(t *testing.T) {
	chunks, err := NewSentenceChunker(3, 1).Chunk(domain.Document{ID: "d", Content: "   "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSentenceChunkerKeepsTrailingFragment(t *testing.T) {
	chunks, err := NewSentenceChunker(2, 0).Chunk(domain.Document{ID: "d", Content: "First one.\nSecond   one! and a tail"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First one. Second one!", chunks[0].Text)
	assert.Equal(t, "and a tail", chunks[1].Text)
	assert.Equal(t, "d:1", chunks[1].ID)
}
