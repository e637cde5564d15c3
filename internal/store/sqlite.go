package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/ivlev/shotline/internal/storyboard"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);
`

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &DB{db}, nil
}

// SQLiteStore keeps projects as JSON documents keyed by id.
type SQLiteStore struct {
	db     *DB
	logger *slog.Logger
}

func NewSQLite(db *DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Save(ctx context.Context, p storyboard.Project) error {
	if err := checkID(p.ID); err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	query := `
		INSERT INTO projects (id, title, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Title, string(body), p.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	s.logger.Debug("project saved", "id", p.ID, "shots", p.ShotCount())
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (storyboard.Project, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM projects WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return storyboard.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return storyboard.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return decode(body)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(p))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func decode(body string) (storyboard.Project, error) {
	var p storyboard.Project
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return storyboard.Project{}, fmt.Errorf("failed to decode project: %w", err)
	}
	return storyboard.Normalize(p), nil
}
