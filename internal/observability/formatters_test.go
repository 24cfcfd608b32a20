package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/guideline-extractor/internal/assembly"
	"github.com/jonathan/guideline-extractor/internal/types"
)

func TestPrintGuidelineInfo(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGuidelineInfo(types.GuidelineInfo{
		GuidelineID:      "stg_2024",
		GuidelineName:    "Standard Treatment Guidelines",
		GuidelineVersion: "2024",
		Country:          "South Africa",
		RegulatoryStatus: types.RegulatoryDraft,
	})
	output := buf.String()

	assert.Contains(t, output, "GUIDELINE")
	assert.Contains(t, output, "stg_2024")
	assert.Contains(t, output, "South Africa")
	assert.Contains(t, output, "draft")
	assert.NotContains(t, output, "Organization")
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	s := assembly.Summary{
		TotalPages:     3,
		SucceededPages: 2,
		TotalChunks:    5,
		Usage:          types.Usage{InputTokens: 1200, OutputTokens: 300},
		ChunksByType:   map[string]int{"generic": 3, "drug_monograph": 2},
	}
	p.PrintRunSummary(s, "claude-sonnet-4-20250514", 0.0081, true)
	output := buf.String()

	assert.Contains(t, output, "EXTRACTION SUMMARY")
	assert.Contains(t, output, "3 processed, 2 succeeded")
	assert.Contains(t, output, "1200 in / 300 out")
	assert.Contains(t, output, "$0.0081")
	assert.Less(t, strings.Index(output, "drug_monograph"), strings.Index(output, "generic"))
}

func TestPrintRunSummary_UnknownCost(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary(assembly.Summary{}, "mystery-model", 0, false)

	assert.Contains(t, buf.String(), "unknown for mystery-model")
	assert.NotContains(t, buf.String(), "By content type")
}

func TestPrintFailures(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintFailures(assembly.Summary{
		PagesNeedingRetry: []int{2, 7},
		Failures: []assembly.PageFailure{
			{PageNumber: 2, Status: types.StatusValidationFailed, ErrorCount: 2, Errors: []string{"Item 0: Unknown content_type 'unicorn'", "Item 1: bad"}},
			{PageNumber: 7, Status: types.StatusError, ErrorCount: 1, Errors: []string{"Transport failure: timeout"}},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "2 page(s) need retry: 2, 7")
	assert.Contains(t, output, "Page 2 (validation_failed, 2 error(s))")
	assert.Contains(t, output, "... and 1 more")
	assert.Contains(t, output, "Page 7 (error, 1 error(s))")
}

func TestPrintFailures_None(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintFailures(assembly.Summary{})

	assert.Empty(t, buf.String())
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidation(2, nil)
	assert.Contains(t, buf.String(), "VALIDATION PASSED")
	assert.Contains(t, buf.String(), "Accepted: 2 record(s)")

	buf.Reset()
	p.PrintValidation(0, []string{"Malformed response: model response is not valid JSON"})
	assert.Contains(t, buf.String(), "VALIDATION FAILED")
	assert.Contains(t, buf.String(), "1. Malformed response")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), line)
	}
	assert.Contains(t, buf.String(), "...")
}
