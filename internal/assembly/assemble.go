// Package assembly joins page outputs into the flat and nested guideline projections.
package assembly

import (
	"sort"
	"time"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// Result holds both projections of one run. Flat and Nested share content bytes.
type Result struct {
	Flat   []types.FlatChunk
	Nested types.GuidelineOutput
}

// Assemble builds the flat and nested projections from page outputs. Outputs are
// ordered by page number first, so callers may pass them in any order.
func Assemble(outputs []types.PageOutput, info types.GuidelineInfo, guidelineAudit types.HumanAudit, createdBy string, now time.Time) Result {
	sorted := make([]types.PageOutput, len(outputs))
	copy(sorted, outputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	flat := make([]types.FlatChunk, 0)
	pages := make([]types.PageWrapper, 0, len(sorted))
	totalChunks := 0

	for _, out := range sorted {
		chunks := out.Chunks
		if chunks == nil {
			chunks = []types.Chunk{}
		}

		pages = append(pages, types.PageWrapper{
			PageInfo:   types.NewPageInfo(out.PageNumber, out.Status, now),
			HumanAudit: types.NewHumanAudit(createdBy, now),
			LLMChunks:  chunks,
		})
		totalChunks += len(chunks)

		for _, chunk := range chunks {
			flat = append(flat, types.FlatChunk{
				ChunkID:          chunk.ChunkInfo.ChunkID,
				GuidelineID:      info.GuidelineID,
				GuidelineName:    info.GuidelineName,
				GuidelineVersion: info.GuidelineVersion,
				Guideline:        info,
				Page:             out.PageNumber,
				Content:          chunk.Content,
				HumanAudit:       chunk.HumanAudit,
			})
		}
	}

	return Result{
		Flat: flat,
		Nested: types.GuidelineOutput{
			GuidelineInfo: info,
			HumanAudit:    guidelineAudit,
			Pages:         pages,
			TotalPages:    len(pages),
			TotalChunks:   totalChunks,
		},
	}
}
