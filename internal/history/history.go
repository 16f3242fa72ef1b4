// Package history records completed conversions in an embedded SQLite
// database so past runs can be inspected without re-reading sidecar files.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id             TEXT PRIMARY KEY,
	image_path     TEXT NOT NULL,
	output_path    TEXT NOT NULL,
	converter_type TEXT NOT NULL,
	model          TEXT NOT NULL DEFAULT '',
	markdown_size  INTEGER NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions (created_at);
`

// Record is one completed conversion.
type Record struct {
	ID            uuid.UUID `db:"id"`
	ImagePath     string    `db:"image_path"`
	OutputPath    string    `db:"output_path"`
	ConverterType string    `db:"converter_type"`
	Model         string    `db:"model"`
	MarkdownSize  int       `db:"markdown_size"`
	DurationMS    int64     `db:"duration_ms"`
	CreatedAt     time.Time `db:"created_at"`
}

// Store persists conversion records.
type Store struct {
	db *sqlx.DB
}

// Open opens (and creates if needed) the history database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite serializes writers anyway, and a pool of one keeps ":memory:"
	// stores on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a record. A zero ID and zero CreatedAt are filled in.
func (s *Store) Add(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO conversions
			(id, image_path, output_path, converter_type, model, markdown_size, duration_ms, created_at)
		VALUES
			(:id, :image_path, :output_path, :converter_type, :model, :markdown_size, :duration_ms, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return Record{}, fmt.Errorf("failed to insert conversion record: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []Record
	const query = `
		SELECT id, image_path, output_path, converter_type, model, markdown_size, duration_ms, created_at
		FROM conversions
		ORDER BY created_at DESC, id
		LIMIT ?`

	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query conversion records: %w", err)
	}
	return records, nil
}

// ByConverter returns records for one converter type, newest first.
func (s *Store) ByConverter(ctx context.Context, converterType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []Record
	const query = `
		SELECT id, image_path, output_path, converter_type, model, markdown_size, duration_ms, created_at
		FROM conversions
		WHERE converter_type = ?
		ORDER BY created_at DESC, id
		LIMIT ?`

	if err := s.db.SelectContext(ctx, &records, query, converterType, limit); err != nil {
		return nil, fmt.Errorf("failed to query conversion records: %w", err)
	}
	return records, nil
}
