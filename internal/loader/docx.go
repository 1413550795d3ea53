package loader

import (
	"fmt"
	"os"
	"strings"

	docx "github.com/fumiama/go-docx"

	"docsearch/internal/domain"
)

// loadDocx extracts the body text of an OOXML word document: one line per
// paragraph, table cells separated by tabs. Legacy binary .doc files are not
// zip packages and fail here.
func loadDocx(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open word package: %w", err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			lines = append(lines, it.String())
		case *docx.Table:
			lines = append(lines, tableLines(it)...)
		}
	}
	text := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	return []domain.Document{newDocument(path, text, nil)}, nil
}

func tableLines(t *docx.Table) []string {
	var lines []string
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			paras := make([]string, 0, len(cell.Paragraphs))
			for _, p := range cell.Paragraphs {
				paras = append(paras, p.String())
			}
			cells = append(cells, strings.Join(paras, " "))
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return lines
}
