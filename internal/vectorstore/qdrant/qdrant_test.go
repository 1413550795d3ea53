package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
)

func TestPointsRoundTripPayload(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "guide.pdf#2:0", DocumentID: "guide.pdf#2", Index: 0, Text: "hello", Metadata: map[string]any{
			domain.MetaSource: "guide.pdf", domain.MetaPage: 2,
		}},
		{ID: "notes.txt:1", DocumentID: "notes.txt", Index: 1, Text: "world", Metadata: map[string]any{
			domain.MetaSource: "notes.txt",
		}},
	}
	pts, err := points(chunks, [][]float32{{1, 0}, {0, 1}}, 10)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.NotEqual(t, pts[0].GetId().GetUuid(), pts[1].GetId().GetUuid())

	c, seq := chunkFromPayload(pts[0].GetPayload())
	assert.Equal(t, int64(10), seq)
	assert.Equal(t, "guide.pdf#2:0", c.ID)
	assert.Equal(t, "guide.pdf#2", c.DocumentID)
	assert.Equal(t, "hello", c.Text)
	assert.Equal(t, "guide.pdf", c.Source())
	assert.Equal(t, int64(2), c.Metadata[domain.MetaPage])
	assert.NotContains(t, c.Metadata, keyContent)

	c, seq = chunkFromPayload(pts[1].GetPayload())
	assert.Equal(t, int64(11), seq)
	assert.Equal(t, 1, c.Index)
	assert.True(t, c.Matches(map[string]string{domain.MetaSource: "notes.txt"}))
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(nil))

	f := buildFilter(map[string]string{domain.MetaSource: "a.pdf", domain.MetaPage: "3"})
	require.Len(t, f.GetMust(), 2)

	// keys are sorted: page before source
	nested := f.GetMust()[0].GetFilter()
	require.NotNil(t, nested)
	assert.Len(t, nested.GetShould(), 2)

	field := f.GetMust()[1].GetField()
	require.NotNil(t, field)
	assert.Equal(t, domain.MetaSource, field.GetKey())
	assert.Equal(t, "a.pdf", field.GetMatch().GetKeyword())
}

func TestConvertValue(t *testing.T) {
	values := qdrant.NewValueMap(map[string]any{
		"flag":  true,
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
	})
	assert.Equal(t, true, convertValue(values["flag"]))
	assert.Equal(t, 0.5, convertValue(values["ratio"]))
	assert.Equal(t, []any{"a", "b"}, convertValue(values["tags"]))
}
