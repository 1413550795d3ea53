package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writeDocx(t *testing.T, dir, name string, body string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

const sampleDocx = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r><w:r><w:tab/><w:t>tabbed</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestLoadGroupsByExtensionAndSkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", []byte("bravo"))
	writeFile(t, dir, "A.TXT", []byte("alpha"))
	writeFile(t, dir, "image.png", []byte{0x89, 0x50})
	writeDocx(t, dir, "report.docx", sampleDocx)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	docs, err := NewDirectoryLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "A.TXT", docs[0].Source())
	assert.Equal(t, "alpha", docs[0].Content)
	assert.Equal(t, "b.txt", docs[1].Source())
	assert.Equal(t, "report.docx", docs[2].Source())
	assert.Equal(t, "First paragraph\ttabbed\nSecond paragraph", docs[2].Content)
}

func TestLoadDocxTable(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, dir, "grid.docx", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Prices</w:t></w:r></w:p>
    <w:tbl>
      <w:tr><w:tc><w:p><w:r><w:t>apple</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>1.20</w:t></w:r></w:p></w:tc></w:tr>
      <w:tr><w:tc><w:p><w:r><w:t>pear</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>0.90</w:t></w:r></w:p></w:tc></w:tr>
    </w:tbl>
  </w:body>
</w:document>`)

	docs, err := NewDirectoryLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Prices\napple\t1.20\npear\t0.90", docs[0].Content)
}

func TestLoadEmptyDir(t *testing.T) {
	docs, err := NewDirectoryLoader().Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "latin1.txt", []byte{0x63, 0x61, 0x66, 0xe9})

	_, err := NewDirectoryLoader().Load(dir)
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestLoadLegacyDocFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.doc", []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})

	_, err := NewDirectoryLoader().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "old.doc")
}

func TestLoadCorruptPDFFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", []byte("not a pdf at all"))

	_, err := NewDirectoryLoader().Load(dir)
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("notes.txt"))
	assert.True(t, Supported("x.doc"))
	assert.False(t, Supported("x.md"))
	assert.False(t, Supported("noext"))
}

func TestDocumentIDsIncludePage(t *testing.T) {
	d := newDocument("/tmp/x/manual.pdf", "text", map[string]any{domain.MetaPage: 2})
	assert.Equal(t, "manual.pdf#2", d.ID)
	assert.Equal(t, "manual.pdf", d.Source())
	assert.Equal(t, 2, d.Metadata[domain.MetaPage])
}
