package assembly

import (
	"sort"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// PageFailure is a page that needs re-extraction
type PageFailure struct {
	PageNumber int                    `json:"page_number"`
	Status     types.ExtractionStatus `json:"status"`
	ErrorCount int                    `json:"error_count"`
	Errors     []string               `json:"errors"`
}

// Summary describes the outcome of a run for operators
type Summary struct {
	TotalPages        int            `json:"total_pages"`
	SucceededPages    int            `json:"succeeded_pages"`
	TotalChunks       int            `json:"total_chunks"`
	PagesNeedingRetry []int          `json:"pages_needing_retry"`
	Failures          []PageFailure  `json:"failures"`
	Usage             types.Usage    `json:"usage"`
	ChunksByType      map[string]int `json:"chunks_by_type"`
}

// Summarize derives the run summary from page outputs
func Summarize(outputs []types.PageOutput) Summary {
	s := Summary{
		PagesNeedingRetry: []int{},
		Failures:          []PageFailure{},
		ChunksByType:      map[string]int{},
	}

	for _, out := range outputs {
		s.TotalPages++
		s.Usage = s.Usage.Add(out.Usage)
		s.TotalChunks += len(out.Chunks)
		for _, rec := range out.Records {
			s.ChunksByType[string(rec.Type())]++
		}

		if !out.NeedsRetry() {
			s.SucceededPages++
			continue
		}
		s.PagesNeedingRetry = append(s.PagesNeedingRetry, out.PageNumber)
		s.Failures = append(s.Failures, PageFailure{
			PageNumber: out.PageNumber,
			Status:     out.Status,
			ErrorCount: len(out.Errors),
			Errors:     out.Errors,
		})
	}

	sort.Ints(s.PagesNeedingRetry)
	sort.Slice(s.Failures, func(i, j int) bool {
		return s.Failures[i].PageNumber < s.Failures[j].PageNumber
	})
	return s
}
