//go:build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx))
	t.Cleanup(db.Close)
	return db
}

func TestDB_RunAndArtifacts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	runID, err := db.CreateRun(ctx, NewRun{GuidelineID: "it_guideline", GuidelineName: "Integration", Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), `DELETE FROM extraction_runs WHERE id = $1`, runID)
	})

	store := NewRunStore(db, runID)
	require.NoError(t, store.SaveText(ctx, "page_001_raw.txt", "raw"))
	require.NoError(t, store.SaveJSON(ctx, "page_001.json", map[string]int{"page": 1}))

	text, err := db.GetTextArtifact(ctx, runID, "page_001_raw.txt")
	require.NoError(t, err)
	assert.Equal(t, "raw", text)

	data, err := db.GetArtifact(ctx, runID, "page_001.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":1}`, string(data))

	names, err := db.ListArtifacts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"page_001.json", "page_001_raw.txt"}, names)

	require.NoError(t, db.CompleteRun(ctx, runID, RunTotals{Status: RunStatusCompleted, TotalPages: 1, TotalChunks: 2}))
	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
}

func TestDB_GetRun_Missing(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, run)
}
