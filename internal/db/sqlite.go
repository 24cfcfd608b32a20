package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is a single-file local archive with the same layout as the PostgreSQL store
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the archive at path and applies the schema
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: conn}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRun creates a new extraction run record and returns its ID
func (s *SQLite) CreateRun(ctx context.Context, run NewRun) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, guideline_id, guideline_name, model, status) VALUES (?, ?, ?, ?, ?)`,
		id.String(), run.GuidelineID, run.GuidelineName, run.Model, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun records the final status and totals of a run
func (s *SQLite) CompleteRun(ctx context.Context, runID uuid.UUID, totals RunTotals) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs
		 SET status = ?, total_pages = ?, total_chunks = ?, completed_at = ?,
		     guideline_id = COALESCE(NULLIF(?, ''), guideline_id),
		     guideline_name = COALESCE(NULLIF(?, ''), guideline_name)
		 WHERE id = ?`,
		totals.Status, totals.TotalPages, totals.TotalChunks, time.Now().UTC().Format(time.RFC3339),
		totals.GuidelineID, totals.GuidelineName, runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID. It returns nil when the run does not exist.
func (s *SQLite) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guideline_id, guideline_name, model, status, total_pages, total_chunks, created_at, completed_at
		 FROM extraction_runs WHERE id = ?`,
		runID.String(),
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guideline_id, guideline_name, model, status, total_pages, total_chunks, created_at, completed_at
		 FROM extraction_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan runs: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		id          string
		createdAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(&id, &run.GuidelineID, &run.GuidelineName, &run.Model, &run.Status,
		&run.TotalPages, &run.TotalChunks, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err == nil {
			run.CompletedAt = &t
		}
	}
	return &run, nil
}

// SaveArtifact stores a JSON artifact for a run
func (s *SQLite) SaveArtifact(ctx context.Context, runID uuid.UUID, name string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_artifacts (run_id, name, content) VALUES (?, ?, ?)
		 ON CONFLICT (run_id, name) DO UPDATE SET content = excluded.content`,
		runID.String(), name, string(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	return nil
}

// SaveTextArtifact stores a text artifact such as a raw model reply
func (s *SQLite) SaveTextArtifact(ctx context.Context, runID uuid.UUID, name, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_artifacts (run_id, name, text_content) VALUES (?, ?, ?)
		 ON CONFLICT (run_id, name) DO UPDATE SET text_content = excluded.text_content`,
		runID.String(), name, text,
	)
	if err != nil {
		return fmt.Errorf("failed to save text artifact %s: %w", name, err)
	}
	return nil
}

// GetArtifact retrieves a JSON artifact. It returns nil when absent.
func (s *SQLite) GetArtifact(ctx context.Context, runID uuid.UUID, name string) ([]byte, error) {
	var content sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM extraction_artifacts WHERE run_id = ? AND name = ?`,
		runID.String(), name,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", name, err)
	}
	if !content.Valid {
		return nil, nil
	}
	return []byte(content.String), nil
}

// GetTextArtifact retrieves a text artifact. It returns "" when absent.
func (s *SQLite) GetTextArtifact(ctx context.Context, runID uuid.UUID, name string) (string, error) {
	var text sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT text_content FROM extraction_artifacts WHERE run_id = ? AND name = ?`,
		runID.String(), name,
	).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get text artifact %s: %w", name, err)
	}
	return text.String, nil
}

// ListArtifacts returns the artifact names stored for a run, sorted
func (s *SQLite) ListArtifacts(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM extraction_artifacts WHERE run_id = ? ORDER BY name`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan artifacts: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
