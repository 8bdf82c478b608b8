// Package storage persists query embeddings in SQLite so repeated queries survive restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiori/internal/vector"
)

// EmbeddingStore is a key/value table of embeddings keyed by content hash.
type EmbeddingStore struct {
	db   *sql.DB
	path string
}

// NewEmbeddingStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewEmbeddingStore(dbPath string) (*EmbeddingStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &EmbeddingStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_embeddings (
		key TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_query_embeddings_model ON query_embeddings(model);
	CREATE INDEX IF NOT EXISTS idx_query_embeddings_last_used ON query_embeddings(last_used_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the embedding stored under key. ok is false when there is none.
func (s *EmbeddingStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM query_embeddings WHERE key = ?`, key,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding: %w", err)
	}
	vec, err := vector.DecodeFloat32s(blob)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE query_embeddings SET last_used_at = CURRENT_TIMESTAMP WHERE key = ?`, key,
	); err != nil {
		return nil, false, fmt.Errorf("failed to touch embedding: %w", err)
	}
	return vec, true, nil
}

// Put stores vec under key, replacing any previous value.
func (s *EmbeddingStore) Put(ctx context.Context, key, model string, vec []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_embeddings (key, model, dimensions, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			last_used_at = CURRENT_TIMESTAMP
	`, key, model, len(vec), vector.EncodeFloat32s(vec))
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *EmbeddingStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// PruneModel deletes embeddings produced by any model other than keep, or of any
// dimension other than dims when dims > 0, and returns how many rows were removed.
// Run after the configured model or dimensions change.
func (s *EmbeddingStore) PruneModel(ctx context.Context, keep string, dims int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM query_embeddings WHERE model <> ? OR (? > 0 AND dimensions <> ?)`,
		keep, dims, dims)
	if err != nil {
		return 0, fmt.Errorf("failed to prune embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Path returns the database file path.
func (s *EmbeddingStore) Path() string {
	return s.path
}

// Files returns the database file and its WAL side files.
func (s *EmbeddingStore) Files() []string {
	return []string{s.path, s.path + "-wal", s.path + "-shm"}
}

// Close closes the database.
func (s *EmbeddingStore) Close() error {
	return s.db.Close()
}
