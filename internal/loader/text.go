package loader

import (
	"os"
	"unicode/utf8"

	"docsearch/internal/domain"
)

func loadText(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidText
	}
	return []domain.Document{newDocument(path, string(data), nil)}, nil
}
