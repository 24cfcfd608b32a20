package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents an extraction run record
type Run struct {
	ID            uuid.UUID  `json:"id"`
	GuidelineID   string     `json:"guideline_id"`
	GuidelineName string     `json:"guideline_name"`
	Model         string     `json:"model"`
	Status        string     `json:"status"`
	TotalPages    int        `json:"total_pages"`
	TotalChunks   int        `json:"total_chunks"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewRun is the input for starting a run
type NewRun struct {
	GuidelineID   string
	GuidelineName string
	Model         string
}

// RunTotals is recorded when a run finishes. The guideline identity is only
// known after the metadata bootstrap, so it is written here as well.
type RunTotals struct {
	GuidelineID   string
	GuidelineName string
	Status        string
	TotalPages    int
	TotalChunks   int
}
