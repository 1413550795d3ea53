package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docsearch/internal/domain"
)

// loadPDF yields one document per page that carries text.
func loadPDF(path string) ([]domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	var docs []domain.Document
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, newDocument(path, text, map[string]any{
			domain.MetaPage:       i - 1,
			domain.MetaTotalPages: total,
		}))
	}
	return docs, nil
}
