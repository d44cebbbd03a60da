package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// maxQueryParams stays below SQLite's default bound-parameter limit.
const maxQueryParams = 500

// SQLiteStore implements ChunkStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ChunkStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
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

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// InsertChunks inserts vectors in a transaction. Zero CreatedAt values are set to now.
func (s *SQLiteStore) InsertChunks(ctx context.Context, vectors []*models.IndexedVector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, vectors); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChunks deletes every chunk and inserts vectors in one transaction.
// On error the previous contents are kept.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, vectors []*models.IndexedVector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, vectors); err != nil {
		return err
	}
	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, vectors []*models.IndexedVector) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source, chunk_index, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, v := range vectors {
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			v.ID, v.Chunk.Source, v.Chunk.Index, v.Chunk.Content, vector.EncodeVector(v.Embedding), v.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", v.ID, err)
		}
	}
	return nil
}

// GetChunks returns the chunks for ids. Missing ids are absent from the map.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) (map[string]*models.IndexedVector, error) {
	out := make(map[string]*models.IndexedVector, len(ids))
	for start := 0; start < len(ids); start += maxQueryParams {
		end := min(start+maxQueryParams, len(ids))
		batch := ids[start:end]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, source, chunk_index, content, created_at
			 FROM chunks WHERE id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var v models.IndexedVector
			if err := rows.Scan(&v.ID, &v.Chunk.Source, &v.Chunk.Index, &v.Chunk.Content, &v.CreatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			out[v.ID] = &v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ForEachEmbedding streams embeddings ordered by insertion.
func (s *SQLiteStore) ForEachEmbedding(ctx context.Context, fn func(id string, embedding []float32) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		if err := fn(id, vector.DecodeVector(blob)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IDs returns every chunk ID in insertion order.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Sources returns each distinct source with its chunk count, ordered by source.
func (s *SQLiteStore) Sources(ctx context.Context) ([]models.SourceSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM chunks GROUP BY source ORDER BY source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceSummary
	for rows.Next() {
		var summary models.SourceSummary
		if err := rows.Scan(&summary.Source, &summary.Chunks); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Clear deletes every chunk.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

// Meta returns the metadata value for key, or ErrNotFound.
func (s *SQLiteStore) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM collection_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}

// SetMeta inserts or replaces a metadata value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
