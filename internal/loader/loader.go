package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docsearch/internal/domain"
)

// ErrInvalidText is returned for .txt files that are not valid UTF-8.
var ErrInvalidText = errors.New("text file is not valid utf-8")

type fileFunc func(path string) ([]domain.Document, error)

type format struct {
	ext  string
	load fileFunc
}

// formats lists the handled extensions in load order.
var formats = []format{
	{ext: ".pdf", load: loadPDF},
	{ext: ".txt", load: loadText},
	{ext: ".docx", load: loadDocx},
	{ext: ".doc", load: loadDocx},
}

// Supported reports whether the file name has an extension the loader handles.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range formats {
		if f.ext == ext {
			return true
		}
	}
	return false
}

// DirectoryLoader loads every supported file of a directory, grouped by extension.
type DirectoryLoader struct {
	formats []format
}

// NewDirectoryLoader returns a loader for .pdf, .txt, .docx and .doc files.
func NewDirectoryLoader() *DirectoryLoader {
	return &DirectoryLoader{formats: formats}
}

// Load reads the top level of dir. Unsupported files are skipped.
func (l *DirectoryLoader) Load(dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	byExt := make(map[string][]string)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		byExt[ext] = append(byExt[ext], filepath.Join(dir, e.Name()))
	}

	var documents []domain.Document
	for _, f := range l.formats {
		paths := byExt[f.ext]
		sort.Strings(paths)
		for _, p := range paths {
			docs, err := f.load(p)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", filepath.Base(p), err)
			}
			documents = append(documents, docs...)
		}
	}
	return documents, nil
}

func newDocument(path, content string, extra map[string]any) domain.Document {
	source := filepath.Base(path)
	meta := map[string]any{domain.MetaSource: source}
	for k, v := range extra {
		meta[k] = v
	}
	id := source
	if page, ok := extra[domain.MetaPage]; ok {
		id = fmt.Sprintf("%s#%v", source, page)
	}
	return domain.Document{ID: id, Content: content, Metadata: meta}
}
