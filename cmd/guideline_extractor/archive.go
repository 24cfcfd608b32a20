package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/db"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
)

// openedArchive is one run row in a configured archive
type openedArchive struct {
	name    string
	archive db.Archive
	runID   uuid.UUID
	close   func()
}

// archives tracks the run rows opened for one extraction
type archives struct {
	opened []openedArchive
	log    *logger.Logger
}

// openArchives connects the configured PostgreSQL and SQLite archives and starts a run in each
func openArchives(ctx context.Context, databaseURL, sqlitePath string, run db.NewRun, log *logger.Logger) (*archives, error) {
	a := &archives{log: log}

	if databaseURL != "" {
		pg, err := db.Connect(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		if err := a.start(ctx, "postgres", pg, run, pg.Close); err != nil {
			pg.Close()
			return nil, err
		}
	}

	if sqlitePath != "" {
		lite, err := db.OpenSQLite(ctx, sqlitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		closeLite := func() { _ = lite.Close() }
		if err := a.start(ctx, "sqlite", lite, run, closeLite); err != nil {
			closeLite()
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *archives) start(ctx context.Context, name string, archive db.Archive, run db.NewRun, closeFn func()) error {
	runID, err := archive.CreateRun(ctx, run)
	if err != nil {
		return err
	}
	a.opened = append(a.opened, openedArchive{name: name, archive: archive, runID: runID, close: closeFn})
	a.log.Info("archive.run.started", "archive", name, "run_id", runID.String())
	return nil
}

// Stores returns one artifact store per opened archive
func (a *archives) Stores() []artifacts.Store {
	stores := make([]artifacts.Store, 0, len(a.opened))
	for _, o := range a.opened {
		stores = append(stores, db.NewRunStore(o.archive, o.runID))
	}
	return stores
}

// Complete records the run outcome in every archive. A nil result marks the run failed.
func (a *archives) Complete(ctx context.Context, result *pipeline.RunResult) {
	totals := db.RunTotals{Status: db.RunStatusFailed}
	if result != nil {
		totals = db.RunTotals{
			GuidelineID:   result.Guideline.GuidelineID,
			GuidelineName: result.Guideline.GuidelineName,
			Status:        db.RunStatusCompleted,
			TotalPages:    result.Summary.TotalPages,
			TotalChunks:   result.Summary.TotalChunks,
		}
	}

	for _, o := range a.opened {
		if err := o.archive.CompleteRun(ctx, o.runID, totals); err != nil {
			a.log.Warn("archive.run.complete_failed", "archive", o.name, "run_id", o.runID.String(), "error", err)
			continue
		}
		a.log.Info("archive.run.completed", "archive", o.name, "run_id", o.runID.String(), "status", totals.Status)
	}
}

// Close releases every archive connection
func (a *archives) Close() {
	for _, o := range a.opened {
		o.close()
	}
	a.opened = nil
}
