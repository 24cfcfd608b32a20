// Package db provides PostgreSQL and SQLite archives for extraction runs and their artifacts.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the run and artifact tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateRun creates a new extraction run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, run NewRun) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, guideline_id, guideline_name, model, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, run.GuidelineID, run.GuidelineName, run.Model, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun records the final status and totals of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, totals RunTotals) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE extraction_runs
		 SET status = $1, total_pages = $2, total_chunks = $3, completed_at = NOW(),
		     guideline_id = COALESCE(NULLIF($4, ''), guideline_id),
		     guideline_name = COALESCE(NULLIF($5, ''), guideline_name)
		 WHERE id = $6`,
		totals.Status, totals.TotalPages, totals.TotalChunks, totals.GuidelineID, totals.GuidelineName, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID. It returns nil when the run does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, guideline_id, guideline_name, model, status, total_pages, total_chunks, created_at, completed_at
		 FROM extraction_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.GuidelineID, &run.GuidelineName, &run.Model, &run.Status,
		&run.TotalPages, &run.TotalChunks, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, guideline_id, guideline_name, model, status, total_pages, total_chunks, created_at, completed_at
		 FROM extraction_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Run])
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}
	return runs, nil
}

// SaveArtifact stores a JSON artifact for a run
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, name string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO extraction_artifacts (run_id, name, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, name) DO UPDATE SET content = $3, created_at = NOW()`,
		runID, name, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	return nil
}

// SaveTextArtifact stores a text artifact such as a raw model reply
func (db *DB) SaveTextArtifact(ctx context.Context, runID uuid.UUID, name, text string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO extraction_artifacts (run_id, name, text_content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, name) DO UPDATE SET text_content = $3, created_at = NOW()`,
		runID, name, text,
	)
	if err != nil {
		return fmt.Errorf("failed to save text artifact %s: %w", name, err)
	}
	return nil
}

// GetArtifact retrieves a JSON artifact. It returns nil when absent.
func (db *DB) GetArtifact(ctx context.Context, runID uuid.UUID, name string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM extraction_artifacts WHERE run_id = $1 AND name = $2`,
		runID, name,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", name, err)
	}
	return content, nil
}

// GetTextArtifact retrieves a text artifact. It returns "" when absent.
func (db *DB) GetTextArtifact(ctx context.Context, runID uuid.UUID, name string) (string, error) {
	var text *string
	err := db.pool.QueryRow(ctx,
		`SELECT text_content FROM extraction_artifacts WHERE run_id = $1 AND name = $2`,
		runID, name,
	).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get text artifact %s: %w", name, err)
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}

// ListArtifacts returns the artifact names stored for a run, sorted
func (db *DB) ListArtifacts(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT name FROM extraction_artifacts WHERE run_id = $1 ORDER BY name`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifacts: %w", err)
	}
	return names, nil
}
