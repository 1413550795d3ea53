// Package sqlite persists every index as its own SQLite file under a root
// directory and answers queries with an exhaustive cosine scan.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/index"
)

// FileName is the database file inside each index directory.
const FileName = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    chunk_index  INTEGER NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    text         TEXT NOT NULL,
    metadata     TEXT NOT NULL DEFAULT '{}',
    embedding    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// Storage keeps one open database handle and one loaded flat index per name.
// Loaded indexes are dropped on every write and rebuilt on the next query.
type Storage struct {
	root   string
	logger *zap.Logger

	mu     sync.Mutex
	dbs    map[string]*sql.DB
	loaded map[string]*index.Flat
}

var _ vectorstore.Store = (*Storage)(nil)

// New creates the root directory if needed and returns a store rooted at it.
func New(root string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		root:   root,
		logger: logger,
		dbs:    map[string]*sql.DB{},
		loaded: map[string]*index.Flat{},
	}, nil
}

// Dir returns the directory that holds the named index.
func (s *Storage) Dir(name string) string { return filepath.Join(s.root, name) }

// Create builds the index in a temporary directory and swaps it into place,
// so a failed build leaves the previous index untouched.
func (s *Storage) Create(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.ValidateName(name); err != nil {
		return err
	}
	dim, err := vectorstore.CheckBatch(chunks, vectors)
	if err != nil {
		return err
	}

	// Valid names never start with a dot, so the build dir cannot clash with an index.
	tmp := filepath.Join(s.root, ".build-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	db, err := open(filepath.Join(tmp, FileName))
	if err != nil {
		return err
	}
	err = initialize(ctx, db, dim)
	if err == nil {
		err = insert(ctx, db, chunks, vectors)
	}
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forget(name)
	dir := s.Dir(name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous index %s: %w", name, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("install index %s: %w", name, err)
	}
	s.logger.Debug("sqlite index created", zap.String("index", name), zap.Int("chunks", len(chunks)), zap.Int("dimension", dim))
	return nil
}

func (s *Storage) Add(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	dim, err := vectorstore.CheckBatch(chunks, vectors)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.handle(name)
	if err != nil {
		return err
	}
	want, err := dimension(ctx, db)
	if err != nil {
		return err
	}
	if dim != want {
		return fmt.Errorf("%w: got %d values, index %s has %d", vectorstore.ErrDimensionMismatch, dim, name, want)
	}
	delete(s.loaded, name)
	if err := insert(ctx, db, chunks, vectors); err != nil {
		return fmt.Errorf("extend index %s: %w", name, err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, name string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	idx, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return idx.Search(vector, k, filter)
}

func (s *Storage) Chunks(ctx context.Context, name string) ([]domain.Chunk, error) {
	idx, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return idx.Chunks(), nil
}

func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.Dir(name), FileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forget(name)
	if err := os.RemoveAll(s.Dir(name)); err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	return nil
}

// Close releases every open database handle.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, db := range s.dbs {
		errs = append(errs, db.Close())
		delete(s.dbs, name)
	}
	s.loaded = map[string]*index.Flat{}
	return errors.Join(errs...)
}

// load returns the cached flat index for name, reading it from disk on a miss.
func (s *Storage) load(ctx context.Context, name string) (*index.Flat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.loaded[name]; ok {
		return idx, nil
	}
	db, err := s.handle(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	idx, err := readIndex(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", name, err)
	}
	s.loaded[name] = idx
	s.logger.Debug("sqlite index loaded", zap.String("index", name), zap.Int("chunks", idx.Len()), zap.Duration("took", time.Since(start)))
	return idx, nil
}

// handle must be called with s.mu held.
func (s *Storage) handle(name string) (*sql.DB, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return nil, err
	}
	if db, ok := s.dbs[name]; ok {
		return db, nil
	}
	path := filepath.Join(s.Dir(name), FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
		}
		return nil, err
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	s.dbs[name] = db
	return db, nil
}

// forget must be called with s.mu held.
func (s *Storage) forget(name string) {
	if db, ok := s.dbs[name]; ok {
		if err := db.Close(); err != nil {
			s.logger.Warn("close sqlite index", zap.String("index", name), zap.Error(err))
		}
		delete(s.dbs, name)
	}
	delete(s.loaded, name)
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	return db, nil
}

func initialize(ctx context.Context, db *sql.DB, dim int) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('dimension', ?), ('created_at', ?)`,
		strconv.Itoa(dim), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func dimension(ctx context.Context, db *sql.DB) (int, error) {
	var v string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read dimension: %w", err)
	}
	return strconv.Atoi(v)
}

func insert(ctx context.Context, db *sql.DB, chunks []domain.Chunk, vectors [][]float32) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, chunk_index, source, text, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Source(), c.Text, string(meta), index.EncodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func readIndex(ctx context.Context, db *sql.DB) (*index.Flat, error) {
	dim, err := dimension(ctx, db)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, text, metadata, embedding FROM chunks ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		chunks  []domain.Chunk
		vectors [][]float32
	)
	for rows.Next() {
		var (
			c    domain.Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &meta, &blob); err != nil {
			return nil, err
		}
		if c.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", c.ID, err)
		}
		vec, err := index.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idx := index.NewFlat(dim)
	if err := idx.Add(chunks, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// decodeMetadata keeps numbers as json.Number so integers survive the round trip.
func decodeMetadata(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	m := map[string]any{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
