package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricing_Cost(t *testing.T) {
	pricing := DefaultPricing()

	cost, ok := pricing.Cost("claude-sonnet-4-20250514", 1_000_000, 100_000)
	require.True(t, ok)
	assert.InDelta(t, 3.00+1.50, cost, 1e-9)

	cost, ok = pricing.Cost("claude-3-5-haiku-20241022", 500_000, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.40, cost, 1e-9)
}

func TestPricing_UnknownModelIsNotAnError(t *testing.T) {
	cost, ok := DefaultPricing().Cost("gemini-2.5-flash", 1000, 1000)
	assert.False(t, ok)
	assert.Zero(t, cost)
}

func TestPricing_Injectable(t *testing.T) {
	pricing := Pricing{"local-model": {Input: 1, Output: 2}}

	cost, ok := pricing.Cost("local-model", 2_000_000, 1_000_000)
	require.True(t, ok)
	assert.InDelta(t, 4.0, cost, 1e-9)

	_, ok = pricing.Cost("claude-sonnet-4-20250514", 1, 1)
	assert.False(t, ok)
}

func TestPricing_Models(t *testing.T) {
	models := DefaultPricing().Models()
	assert.Len(t, models, 5)
	assert.IsIncreasing(t, models)
}
