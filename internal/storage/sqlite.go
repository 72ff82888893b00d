// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/examchat/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
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

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		content TEXT NOT NULL,
		entries INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	CREATE INDEX IF NOT EXISTS idx_exports_session_id ON exports(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveExport inserts an export. CreatedAt is set when zero.
func (s *SQLiteStorage) SaveExport(ctx context.Context, exp *models.Export) error {
	if exp.ID == "" {
		return errors.New("export id is empty")
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, session_id, filename, content, entries, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.SessionID, exp.Filename, exp.Content, exp.Entries, exp.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	return nil
}

// GetExport returns an export by ID, including its content.
func (s *SQLiteStorage) GetExport(ctx context.Context, id string) (*models.Export, error) {
	var exp models.Export
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, filename, content, entries, created_at
		 FROM exports WHERE id = ?`, id,
	).Scan(&exp.ID, &exp.SessionID, &exp.Filename, &exp.Content, &exp.Entries, &exp.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// DeleteExport removes an export by ID.
func (s *SQLiteStorage) DeleteExport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListExports returns exports newest first with offset and limit.
func (s *SQLiteStorage) ListExports(ctx context.Context, offset, limit int) ([]*models.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, filename, entries, created_at
		 FROM exports ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// ListExportsBySession returns the exports of one session, newest first.
func (s *SQLiteStorage) ListExportsBySession(ctx context.Context, sessionID string) ([]*models.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, filename, entries, created_at
		 FROM exports WHERE session_id = ? ORDER BY created_at DESC, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]*models.Export, error) {
	defer rows.Close()
	exports := []*models.Export{}
	for rows.Next() {
		var exp models.Export
		if err := rows.Scan(&exp.ID, &exp.SessionID, &exp.Filename, &exp.Entries, &exp.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, &exp)
	}
	return exports, rows.Err()
}

// CountExports returns the total number of exports.
func (s *SQLiteStorage) CountExports(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
