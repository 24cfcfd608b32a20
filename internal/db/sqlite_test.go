package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	runID, err := s.CreateRun(ctx, NewRun{GuidelineID: "stg_2024", GuidelineName: "STG", Model: "claude-sonnet-4-20250514"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, runID)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, "stg_2024", run.GuidelineID)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, s.CompleteRun(ctx, runID, RunTotals{GuidelineName: "Standard Treatment Guidelines", Status: RunStatusCompleted, TotalPages: 4, TotalChunks: 9}))

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.TotalPages)
	assert.Equal(t, 9, run.TotalChunks)
	assert.Equal(t, "stg_2024", run.GuidelineID, "empty totals keep the original id")
	assert.Equal(t, "Standard Treatment Guidelines", run.GuidelineName)
	assert.NotNil(t, run.CompletedAt)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	s := openTestSQLite(t)

	run, err := s.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSQLite_ListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	var ids []uuid.UUID
	for _, name := range []string{"first", "second", "third"} {
		id, err := s.CreateRun(ctx, NewRun{GuidelineName: name, Model: "m"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestSQLite_Artifacts(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	runID, err := s.CreateRun(ctx, NewRun{GuidelineID: "g", GuidelineName: "G"})
	require.NoError(t, err)

	require.NoError(t, s.SaveArtifact(ctx, runID, "page_001.json", map[string]any{"page": 1}))
	require.NoError(t, s.SaveTextArtifact(ctx, runID, "page_001_raw.txt", "```json\n[]\n```"))

	// Overwrite replaces the previous content
	require.NoError(t, s.SaveArtifact(ctx, runID, "page_001.json", map[string]any{"page": 2}))

	data, err := s.GetArtifact(ctx, runID, "page_001.json")
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got["page"])

	text, err := s.GetTextArtifact(ctx, runID, "page_001_raw.txt")
	require.NoError(t, err)
	assert.Equal(t, "```json\n[]\n```", text)

	missing, err := s.GetArtifact(ctx, runID, "nope.json")
	require.NoError(t, err)
	assert.Nil(t, missing)

	names, err := s.ListArtifacts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"page_001.json", "page_001_raw.txt"}, names)
}

func TestSQLite_ArtifactRequiresRun(t *testing.T) {
	s := openTestSQLite(t)

	err := s.SaveArtifact(context.Background(), uuid.New(), "x.json", map[string]any{})
	assert.Error(t, err, "foreign key should reject unknown run")
}

func TestRunStore_WritesThroughArchive(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	runID, err := s.CreateRun(ctx, NewRun{GuidelineID: "g", GuidelineName: "G"})
	require.NoError(t, err)

	store := NewRunStore(s, runID)
	assert.Equal(t, runID, store.RunID())

	require.NoError(t, store.SaveText(ctx, "page_002_errors.txt", "Item 0: bad"))
	require.NoError(t, store.SaveJSON(ctx, "guideline_flat.json", []string{"a"}))

	text, err := s.GetTextArtifact(ctx, runID, "page_002_errors.txt")
	require.NoError(t, err)
	assert.Equal(t, "Item 0: bad", text)

	data, err := s.GetArtifact(ctx, runID, "guideline_flat.json")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(data))
}
