// Package sqlite keeps the evaluation history in an append-only SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// tsLayout has fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ port.ResultStore = (*ResultStore)(nil)

type ResultStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path. The special
// path ":memory:" gives a private in-memory database.
func Open(path string) (*ResultStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &ResultStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return s, nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}

func (s *ResultStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Append inserts result. An existing ID is an error; rows are never updated.
func (s *ResultStore) Append(ctx context.Context, result *domain.EvaluationResult) error {
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	details, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (id, created_at, mode, num_questions, overall, metrics, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.ID, result.Timestamp.UTC().Format(tsLayout), result.Mode,
		result.NumQuestions, result.Overall, string(metrics), string(details))
	if err != nil {
		return fmt.Errorf("failed to record evaluation %s: %w", result.ID, err)
	}
	return nil
}

// List returns up to limit results, newest first. A non-positive limit
// returns everything.
func (s *ResultStore) List(ctx context.Context, limit int) ([]domain.EvaluationResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, mode, num_questions, overall, metrics, details
		FROM evaluations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var results []domain.EvaluationResult
	for rows.Next() {
		var (
			r                  domain.EvaluationResult
			created            string
			metrics, detailRaw string
		)
		if err := rows.Scan(&r.ID, &created, &r.Mode, &r.NumQuestions, &r.Overall, &metrics, &detailRaw); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if r.Timestamp, err = time.Parse(tsLayout, created); err != nil {
			return nil, fmt.Errorf("invalid timestamp for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			return nil, fmt.Errorf("invalid metrics for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(detailRaw), &r.Details); err != nil {
			return nil, fmt.Errorf("invalid details for %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
