package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/guideline-extractor/internal/config"
)

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	_, _, err := openBackend(ctx, config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run archive is required")

	backend, closeFn, err := openBackend(ctx, config.Config{SQLitePath: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	defer closeFn()

	runs, err := backend.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
