package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// DefaultBatchSize bounds concurrent requests to the vision model
const DefaultBatchSize = 5

// ErrInvalidBatchSize is returned when the batch size is below one
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// PageFunc processes one page and must call onDone exactly once
type PageFunc func(ctx context.Context, page types.PageImage, onDone func(pageNumber int)) types.PageOutput

// ProgressFunc receives the completed and total page counts after every page
type ProgressFunc func(completed, total int)

// RunBatches processes pages in consecutive batches of at most batchSize. Every page
// of a batch runs concurrently and the next batch starts only after all of them return.
// Page failures are values in the outputs; only a cancelled context stops early, and it
// is reported even when it arrives during the last batch.
// Outputs are sorted by page number.
func RunBatches(ctx context.Context, pages []types.PageImage, batchSize int, process PageFunc, progress ProgressFunc) ([]types.PageOutput, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}

	total := len(pages)
	outputs := make([]types.PageOutput, 0, total)
	completed := 0
	var mu sync.Mutex

	onDone := func(int) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if progress != nil {
			progress(completed, total)
		}
	}

	for start := 0; start < total; start += batchSize {
		if err := ctx.Err(); err != nil {
			return sortByPage(outputs), err
		}

		end := min(start+batchSize, total)
		g, gctx := errgroup.WithContext(ctx)
		for _, page := range pages[start:end] {
			g.Go(func() error {
				out := process(gctx, page, onDone)
				mu.Lock()
				outputs = append(outputs, out)
				mu.Unlock()
				// Only cancellation of the run fails the group; page failures are outputs
				return ctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return sortByPage(outputs), err
		}
	}

	return sortByPage(outputs), nil
}

func sortByPage(outputs []types.PageOutput) []types.PageOutput {
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].PageNumber < outputs[j].PageNumber
	})
	return outputs
}
