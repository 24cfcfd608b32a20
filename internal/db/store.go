package db

import (
	"context"

	"github.com/google/uuid"
)

// Archive is what both database backends provide
type Archive interface {
	CreateRun(ctx context.Context, run NewRun) (uuid.UUID, error)
	CompleteRun(ctx context.Context, runID uuid.UUID, totals RunTotals) error
	SaveArtifact(ctx context.Context, runID uuid.UUID, name string, content any) error
	SaveTextArtifact(ctx context.Context, runID uuid.UUID, name, text string) error
}

// Reader is the read side of both database backends
type Reader interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetArtifact(ctx context.Context, runID uuid.UUID, name string) ([]byte, error)
	GetTextArtifact(ctx context.Context, runID uuid.UUID, name string) (string, error)
	ListArtifacts(ctx context.Context, runID uuid.UUID) ([]string, error)
}

// Backend is a database that can both record and serve runs
type Backend interface {
	Archive
	Reader
}

// RunStore adapts an Archive to the artifact store interface for a single run
type RunStore struct {
	archive Archive
	runID   uuid.UUID
}

// NewRunStore binds archive to runID
func NewRunStore(archive Archive, runID uuid.UUID) *RunStore {
	return &RunStore{archive: archive, runID: runID}
}

// RunID returns the bound run
func (s *RunStore) RunID() uuid.UUID {
	return s.runID
}

// SaveText stores a text artifact under the run
func (s *RunStore) SaveText(ctx context.Context, name, text string) error {
	return s.archive.SaveTextArtifact(ctx, s.runID, name, text)
}

// SaveJSON stores a JSON artifact under the run
func (s *RunStore) SaveJSON(ctx context.Context, name string, v any) error {
	return s.archive.SaveArtifact(ctx, s.runID, name, v)
}

var (
	_ Backend = (*DB)(nil)
	_ Backend = (*SQLite)(nil)
)
