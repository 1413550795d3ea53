package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
)

type fakeSearcher struct {
	gotIndex, gotQuery, gotSource string
	results                       []domain.SearchResult
	err                           error
}

func (f *fakeSearcher) Search(_ context.Context, name, query, source string) ([]domain.SearchResult, error) {
	f.gotIndex, f.gotQuery, f.gotSource = name, query, source
	return f.results, f.err
}

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	for _, r := range q {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestEnterRunsQueryAgainstIndexAndSource(t *testing.T) {
	s := &fakeSearcher{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "first"}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "second"}, Score: 0.5},
	}}
	m := typeQuery(t, New(s, "manuals", "a.pdf"), "tree")

	assert.Equal(t, "manuals", s.gotIndex)
	assert.Equal(t, "tree", s.gotQuery)
	assert.Equal(t, "a.pdf", s.gotSource)
	require.Len(t, m.results, 2)
	assert.Equal(t, `2 results for "tree"`, m.status)
	assert.Equal(t, 0, m.cursor)
}

func TestArrowKeysCycleResults(t *testing.T) {
	s := &fakeSearcher{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "a"}}, {Chunk: domain.Chunk{Text: "b"}}, {Chunk: domain.Chunk{Text: "c"}},
	}}
	m := typeQuery(t, New(s, "idx", ""), "q")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 2, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
}

func TestSearchErrorIsShown(t *testing.T) {
	s := &fakeSearcher{err: errors.New("index not found")}
	m := typeQuery(t, New(s, "missing", ""), "q")

	assert.Empty(t, m.results)
	assert.Equal(t, "Error: index not found", m.status)
}

func TestBestSentence(t *testing.T) {
	sentences := splitSentences("Cats sleep a lot. Dogs chase the red ball! Birds sing.")
	require.Len(t, sentences, 3)
	assert.Equal(t, 1, bestSentence(sentences, "red ball"))
	assert.Equal(t, -1, bestSentence(sentences, "  "))
}
