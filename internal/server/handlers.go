package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/guideline-extractor/internal/assembly"
	"github.com/jonathan/guideline-extractor/internal/db"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// RunResponse represents the response for POST /runs
type RunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunSummaryResponse is streamed when a run finishes
type RunSummaryResponse struct {
	RunID     string              `json:"run_id"`
	Guideline types.GuidelineInfo `json:"guideline"`
	Summary   assembly.Summary    `json:"summary"`
	Usage     types.Usage         `json:"usage"`
}

// PageProgress is streamed after every completed page
type PageProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ArtifactListResponse lists the artifacts of one run
type ArtifactListResponse struct {
	RunID     string   `json:"run_id"`
	Artifacts []string `json:"artifacts"`
}

// handleCreateRun starts an extraction in the background and returns its run ID
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(r.Context(), w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	runID, err := s.startRun(r.Context(), up)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.extract(s.baseCtx, runID, up, nil, nil); err != nil {
			s.log.Warn("server.run.failed", "run_id", runID.String(), "error", err)
		}
	}()

	s.jsonResponse(w, http.StatusAccepted, RunResponse{
		RunID:  runID.String(),
		Status: db.RunStatusRunning,
	})
}

// handleRunStream runs an extraction and streams progress via SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up, err := s.parseUpload(ctx, w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID, err := s.startRun(ctx, up)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	_ = sse.WriteEvent("run", RunResponse{RunID: runID.String(), Status: db.RunStatusRunning})

	onProgress := func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", event); err != nil {
			s.log.Debug("server.sse.write_failed", "error", err)
		}
	}
	onPage := func(completed, total int) {
		if err := sse.WriteEvent("page", PageProgress{Completed: completed, Total: total}); err != nil {
			s.log.Debug("server.sse.write_failed", "error", err)
		}
	}

	result, err := s.extract(ctx, runID, up, onProgress, onPage)
	if err != nil {
		sse.WriteError(err.Error())
		sse.WriteComplete(runID.String(), db.RunStatusFailed)
		return
	}

	_ = sse.WriteEvent("summary", RunSummaryResponse{
		RunID:     runID.String(),
		Guideline: result.Guideline,
		Summary:   result.Summary,
		Usage:     result.Usage,
	})
	sse.WriteComplete(runID.String(), db.RunStatusCompleted)
}

// startRun records a new run row for the upload
func (s *Server) startRun(ctx context.Context, up *upload) (uuid.UUID, error) {
	return s.backend.CreateRun(ctx, db.NewRun{
		GuidelineID:   up.Overrides.GuidelineID,
		GuidelineName: up.Overrides.GuidelineName,
		Model:         s.cfg.Model,
	})
}

// extract runs the pipeline for one upload, writing artifacts under runID, and records the outcome
func (s *Server) extract(ctx context.Context, runID uuid.UUID, up *upload, onProgress pipeline.ProgressCallback, onPage pipeline.ProgressFunc) (*pipeline.RunResult, error) {
	log := s.log.With("run_id", runID.String())

	result, err := s.runPipeline(ctx, runID, up, onProgress, onPage, log)

	totals := db.RunTotals{Status: db.RunStatusFailed}
	if err == nil {
		totals = db.RunTotals{
			GuidelineID:   result.Guideline.GuidelineID,
			GuidelineName: result.Guideline.GuidelineName,
			Status:        db.RunStatusCompleted,
			TotalPages:    result.Summary.TotalPages,
			TotalChunks:   result.Summary.TotalChunks,
		}
	}
	// The request context may already be cancelled; the outcome is recorded regardless
	if cerr := s.backend.CompleteRun(context.WithoutCancel(ctx), runID, totals); cerr != nil {
		log.Warn("server.run.complete_failed", "error", cerr)
	}
	if err != nil {
		return nil, err
	}

	log.Info("server.run.done",
		"pages", result.Summary.TotalPages,
		"chunks", result.Summary.TotalChunks,
		"retry", len(result.Summary.PagesNeedingRetry),
	)
	return result, nil
}

func (s *Server) runPipeline(ctx context.Context, runID uuid.UUID, up *upload, onProgress pipeline.ProgressCallback, onPage pipeline.ProgressFunc, log *logger.Logger) (*pipeline.RunResult, error) {
	pageClient, metadataClient, err := s.clients(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pageClient.Close()
		if metadataClient != nil && metadataClient != pageClient {
			_ = metadataClient.Close()
		}
	}()

	return pipeline.Run(ctx, pipeline.RunOptions{
		Pages:          up.Pages,
		MetadataPage:   up.Cover,
		Client:         pageClient,
		MetadataClient: metadataClient,
		Store:          db.NewRunStore(s.backend, runID),
		PromptPath:     s.cfg.PromptPath,
		BatchSize:      up.BatchSize,
		Overrides:      up.Overrides,
		CreatedBy:      s.cfg.CreatedBy,
		Logger:         log,
		OnPage:         onPage,
		OnProgress:     onProgress,
	})
}

// handleListRuns returns the most recent runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.backend.ListRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns the status of one run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListArtifacts lists the artifact names stored for a run
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	names, err := s.backend.ListArtifacts(r.Context(), run.ID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.jsonResponse(w, http.StatusOK, ArtifactListResponse{RunID: run.ID.String(), Artifacts: names})
}

// handleGetArtifact returns one artifact. Names ending in .txt are served as text.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	name := r.PathValue("name")

	if strings.HasSuffix(name, ".txt") {
		text, err := s.backend.GetTextArtifact(r.Context(), run.ID, name)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
			return
		}
		if text == "" && !s.hasArtifact(r.Context(), run.ID, name) {
			s.errorResponse(w, http.StatusNotFound, (&ErrArtifactNotFound{RunID: run.ID, Name: name}).Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
		return
	}

	content, err := s.backend.GetArtifact(r.Context(), run.ID, name)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if content == nil {
		s.errorResponse(w, http.StatusNotFound, (&ErrArtifactNotFound{RunID: run.ID, Name: name}).Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) hasArtifact(ctx context.Context, runID uuid.UUID, name string) bool {
	names, err := s.backend.ListArtifacts(ctx, runID)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// lookupRun parses the {id} path value and loads the run
func (s *Server) lookupRun(r *http.Request) (*db.Run, error) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, &ErrValidation{Field: "id", Message: "invalid run ID format"}
	}

	run, err := s.backend.GetRun(r.Context(), runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &ErrRunNotFound{RunID: runID}
	}
	return run, nil
}
