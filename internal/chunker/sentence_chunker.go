package chunker

import (
	"regexp"
	"strings"

	"docsearch/internal/domain"
)

// sentenceRe matches a sentence with its terminal punctuation. A trailing
// fragment without punctuation is a sentence too.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// SentenceChunker groups consecutive sentences into windows that share
// overlapSentences sentences with the previous window.
type SentenceChunker struct {
	perChunk int
	overlap  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	overlapSentences = max(0, min(overlapSentences, sentencesPerChunk-1))
	return &SentenceChunker{perChunk: sentencesPerChunk, overlap: overlapSentences}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := splitSentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var texts []string
	for start := 0; ; start += c.perChunk - c.overlap {
		end := min(start+c.perChunk, len(sentences))
		texts = append(texts, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return toChunks(document, texts), nil
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}
