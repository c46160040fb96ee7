package processed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SQLiteSet keeps ids in a SQLite table keyed by id.
type SQLiteSet struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating processed directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening processed database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS processed_comments (
		id TEXT PRIMARY KEY,
		processed_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating processed schema: %w", err)
	}
	return &SQLiteSet{db: db}, nil
}

// Contains implements Set.
func (s *SQLiteSet) Contains(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_comments WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying processed id: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements Set.
func (s *SQLiteSet) MarkProcessed(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "processed.sqlite.mark",
		trace.WithAttributes(attribute.String("comment.id", id)))
	defer span.End()

	if id == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_comments (id, processed_at) VALUES (?, ?)`,
		id, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("inserting processed id: %w", err)
	}
	return nil
}

// Count returns the number of stored ids.
func (s *SQLiteSet) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting processed ids: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteSet) Close() error {
	return s.db.Close()
}
