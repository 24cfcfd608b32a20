// Package observability provides formatted run summaries for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/guideline-extractor/internal/assembly"
	"github.com/jonathan/guideline-extractor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes, marking the cut with "..."
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintGuidelineInfo outputs the identity stamped on every chunk
func (p *Printer) PrintGuidelineInfo(info types.GuidelineInfo) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("ID:           %s\n", info.GuidelineID))
	sb.WriteString(fmt.Sprintf("Name:         %s\n", info.GuidelineName))
	if info.GuidelineVersion != "" {
		sb.WriteString(fmt.Sprintf("Version:      %s\n", info.GuidelineVersion))
	}
	if info.Organization != "" {
		sb.WriteString(fmt.Sprintf("Organization: %s\n", info.Organization))
	}
	if info.Country != "" {
		sb.WriteString(fmt.Sprintf("Country:      %s\n", info.Country))
	}
	if info.Jurisdiction != "" {
		sb.WriteString(fmt.Sprintf("Jurisdiction: %s\n", info.Jurisdiction))
	}
	sb.WriteString(fmt.Sprintf("Status:       %s", info.RegulatoryStatus))

	p.printBox("GUIDELINE", sb.String())
}

// PrintRunSummary outputs page and chunk totals, token usage and the estimated cost.
// costKnown is false when the model has no pricing entry.
func (p *Printer) PrintRunSummary(s assembly.Summary, model string, cost float64, costKnown bool) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Pages:   %d processed, %d succeeded\n", s.TotalPages, s.SucceededPages))
	sb.WriteString(fmt.Sprintf("Chunks:  %d\n", s.TotalChunks))
	sb.WriteString(fmt.Sprintf("Tokens:  %d in / %d out\n", s.Usage.InputTokens, s.Usage.OutputTokens))
	if costKnown {
		sb.WriteString(fmt.Sprintf("Cost:    $%.4f (%s)", cost, model))
	} else {
		sb.WriteString(fmt.Sprintf("Cost:    unknown for %s", model))
	}

	if len(s.ChunksByType) > 0 {
		sb.WriteString("\n\nBy content type:\n")
		for _, ct := range types.AllContentTypes() {
			if n := s.ChunksByType[string(ct)]; n > 0 {
				sb.WriteString(fmt.Sprintf("  • %-20s %d\n", ct, n))
			}
		}
	}

	p.printBox("EXTRACTION SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFailures lists pages needing retry with their error counts and first errors
func (p *Printer) PrintFailures(s assembly.Summary) {
	if len(s.Failures) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d page(s) need retry: %s\n", len(s.Failures), joinInts(s.PagesNeedingRetry)))

	count := min(len(s.Failures), maxItemsToShow)
	for i := 0; i < count; i++ {
		f := s.Failures[i]
		sb.WriteString(fmt.Sprintf("\nPage %d (%s, %d error(s))\n", f.PageNumber, f.Status, f.ErrorCount))
		if len(f.Errors) > 0 {
			sb.WriteString(fmt.Sprintf("  • %s\n", f.Errors[0]))
		}
		if len(f.Errors) > 1 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(f.Errors)-1))
		}
	}
	if len(s.Failures) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more pages\n", len(s.Failures)-maxItemsToShow))
	}

	p.printBox("PAGES NEEDING RETRY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintValidation outputs the result of validating a saved reply offline
func (p *Printer) PrintValidation(records int, errs []string) {
	var sb strings.Builder
	if len(errs) == 0 {
		sb.WriteString(fmt.Sprintf("Accepted: %d record(s)", records))
		p.printBox("VALIDATION PASSED", sb.String())
		return
	}

	sb.WriteString(fmt.Sprintf("Rejected with %d error(s):\n", len(errs)))
	for i, e := range errs {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, e))
	}
	p.printBox("VALIDATION FAILED", strings.TrimSuffix(sb.String(), "\n"))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
