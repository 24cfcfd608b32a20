package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCostWith(t *testing.T, model string, in, out int, list bool) (string, error) {
	t.Helper()
	costModel, costInputTokens, costOutputTokens, costList = model, in, out, list
	t.Cleanup(func() {
		costModel, costInputTokens, costOutputTokens, costList = "", 0, 0, false
	})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runCost(cmd, nil)
	return buf.String(), err
}

func TestCostCommand(t *testing.T) {
	out, err := runCostWith(t, "claude-sonnet-4-20250514", 1_000_000, 1_000_000, false)
	require.NoError(t, err)
	assert.Contains(t, out, "$18.0000")
}

func TestCostCommand_UnknownModel(t *testing.T) {
	_, err := runCostWith(t, "gpt-imaginary", 10, 10, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rate for model gpt-imaginary")
	assert.Contains(t, err.Error(), "claude-sonnet-4-20250514")
}

func TestCostCommand_NegativeTokens(t *testing.T) {
	_, err := runCostWith(t, "claude-sonnet-4-20250514", -1, 0, false)
	assert.Error(t, err)
}

func TestCostCommand_List(t *testing.T) {
	out, err := runCostWith(t, "", 0, 0, true)
	require.NoError(t, err)
	assert.Contains(t, out, "claude-opus-4-20250514")
	assert.Contains(t, out, "per million tokens")
}
