package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docsearch/internal/loader"
)

var errBadFilename = errors.New("invalid upload file name")

// upload is a staged request upload.
type upload struct {
	dir     string
	skipped []string
	cleanup func()
}

// saveUploads copies the uploaded files the loader can read into a fresh
// directory under root; the others are listed in skipped. The cleanup func
// removes that directory and must always be called once err is nil.
func saveUploads(root string, files []*multipart.FileHeader) (upload, error) {
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return upload{}, fmt.Errorf("create upload dir: %w", err)
	}
	up := upload{dir: dir, cleanup: func() { _ = os.RemoveAll(dir) }}

	for _, fh := range files {
		name, err := uploadName(fh.Filename)
		if err != nil {
			up.cleanup()
			return upload{}, err
		}
		if !loader.Supported(name) {
			up.skipped = append(up.skipped, name)
			continue
		}
		if err := copyUpload(fh, filepath.Join(dir, name)); err != nil {
			up.cleanup()
			return upload{}, err
		}
	}
	return up, nil
}

// uploadName keeps only the base name of a client supplied file name.
func uploadName(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", errBadFilename, filename)
	}
	return name, nil
}

func copyUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("save upload %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("save upload %s: %w", fh.Filename, err)
	}
	return out.Close()
}
