package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/rendering"
)

// ErrRunNotFound indicates the run does not exist in the archive
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// ErrArtifactNotFound indicates the run has no artifact with that name
type ErrArtifactNotFound struct {
	RunID uuid.UUID
	Name  string
}

func (e *ErrArtifactNotFound) Error() string {
	return fmt.Sprintf("artifact %s not found for run %s", e.Name, e.RunID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound   *ErrRunNotFound
		noArtifact *ErrArtifactNotFound
		invalid    *ErrValidation
		renderErr  *rendering.RenderError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noArtifact):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.Is(err, pipeline.ErrInvalidBatchSize):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &renderErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
