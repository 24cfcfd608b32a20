package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/assembly"
	"github.com/jonathan/guideline-extractor/internal/export"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/prompts"
	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/types"
	"github.com/jonathan/guideline-extractor/internal/validation"
)

// Run stages reported through ProgressEvent
const (
	StageMetadata = "metadata"
	StagePages    = "pages"
	StageAssemble = "assemble"
	StageExport   = "export"
)

// ProgressEvent represents a stage transition during a run
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when a run enters or finishes a stage
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for an extraction run
type RunOptions struct {
	// Pages are the page images to extract, in any order
	Pages []types.PageImage
	// MetadataPage is the cover page for the bootstrap. Defaults to the lowest numbered page.
	MetadataPage *types.PageImage
	// PriorOutputs are pages kept from an earlier run of the same document. They are
	// assembled together with Pages; a page present in both is taken from this run.
	PriorOutputs []types.PageOutput

	Client llm.VisionClient
	// MetadataClient defaults to Client. It usually carries a smaller output token cap.
	MetadataClient llm.VisionClient
	Registry       *schemas.Registry
	Store          artifacts.Store

	PromptPath string
	BatchSize  int
	// Overrides win over extracted metadata. A non-empty GuidelineName skips the bootstrap.
	Overrides      GuidelineOverrides
	CreatedBy      string
	ReviewWorkbook bool

	Now        func() time.Time
	Logger     *logger.Logger
	OnPage     ProgressFunc
	OnProgress ProgressCallback
}

// RunResult holds everything a run produced
type RunResult struct {
	Guideline types.GuidelineInfo
	// Metadata is nil when the bootstrap was skipped
	Metadata *types.GuidelineMetadata
	// Outputs are the pages extracted by this run
	Outputs []types.PageOutput
	// Assembled and Summary also cover PriorOutputs
	Assembled assembly.Result
	Summary   assembly.Summary
	// Usage includes the bootstrap call
	Usage types.Usage
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, stage, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Stage: stage, Message: message, Content: content})
	}
}

// Run bootstraps guideline metadata, extracts every page in batches, and writes the
// flat and nested projections. Prompt, metadata and option failures abort before any
// page is processed; page failures are reported in the result.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if len(opts.Pages) == 0 {
		return nil, errors.New("no pages to extract")
	}
	if opts.BatchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if opts.Client == nil || opts.Store == nil {
		return nil, errors.New("client and store are required")
	}
	if opts.Registry == nil {
		registry, err := schemas.DefaultRegistry()
		if err != nil {
			return nil, err
		}
		opts.Registry = registry
	}
	if opts.MetadataClient == nil {
		opts.MetadataClient = opts.Client
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	basePrompt, err := prompts.LoadBase(opts.PromptPath)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}

	// Metadata bootstrap
	if opts.Overrides.GuidelineName == "" {
		emitProgress(&opts, StageMetadata, "Extracting metadata from first page", nil)
		cover := opts.MetadataPage
		if cover == nil {
			first := lowestPage(opts.Pages)
			cover = &first
		}
		meta, usage, err := BootstrapMetadata(ctx, opts.MetadataClient, opts.Registry, *cover, log)
		result.Usage = result.Usage.Add(usage)
		if err != nil {
			return nil, err
		}
		result.Metadata = meta
		if err := opts.Store.SaveJSON(ctx, artifacts.MetadataName, meta); err != nil {
			return nil, fmt.Errorf("failed to save metadata: %w", err)
		}
	} else {
		log.Info("pipeline.metadata.skipped", "guideline_name", opts.Overrides.GuidelineName)
	}

	info, err := ToGuidelineInfo(result.Metadata, opts.Overrides)
	if err != nil {
		return nil, err
	}
	result.Guideline = info
	emitProgress(&opts, StageMetadata, "Guideline identified", info)

	processor, err := NewProcessor(ProcessorOptions{
		Client:     opts.Client,
		Store:      opts.Store,
		Validator:  validation.New(opts.Registry),
		BasePrompt: basePrompt,
		Guideline:  info,
		CreatedBy:  opts.CreatedBy,
		Now:        opts.Now,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	// Page extraction
	emitProgress(&opts, StagePages, fmt.Sprintf("Extracting %d pages", len(opts.Pages)), nil)
	start := time.Now()
	outputs, err := RunBatches(ctx, opts.Pages, opts.BatchSize, processor.ProcessPage, opts.OnPage)
	if err != nil {
		return nil, err
	}
	result.Outputs = outputs
	log.Info("pipeline.pages.done",
		"pages", len(outputs),
		"batch_size", opts.BatchSize,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	// Assembly
	emitProgress(&opts, StageAssemble, "Assembling outputs", nil)
	all := mergeOutputs(outputs, opts.PriorOutputs)
	if len(all) > len(outputs) {
		log.Info("pipeline.pages.kept", "pages", len(all)-len(outputs))
	}
	now := opts.Now()
	result.Assembled = assembly.Assemble(all, info, types.NewHumanAudit(opts.CreatedBy, now), opts.CreatedBy, now)
	if err := opts.Store.SaveJSON(ctx, artifacts.FlatName, result.Assembled.Flat); err != nil {
		return nil, fmt.Errorf("failed to save flat output: %w", err)
	}
	if err := opts.Store.SaveJSON(ctx, artifacts.NestedName, result.Assembled.Nested); err != nil {
		return nil, fmt.Errorf("failed to save nested output: %w", err)
	}

	if opts.ReviewWorkbook {
		emitProgress(&opts, StageExport, "Writing review workbook", nil)
		if bs, ok := opts.Store.(artifacts.BinaryStore); ok {
			if err := export.SaveReviewWorkbook(ctx, bs, result.Assembled.Flat, log); err != nil {
				return nil, err
			}
		} else {
			log.Warn("export.xlsx.skipped", "reason", "store does not accept binary artifacts")
		}
	}

	result.Summary = assembly.Summarize(all)
	result.Usage = result.Usage.Add(result.Summary.Usage)
	return result, nil
}

// mergeOutputs adds the prior pages that fresh does not cover, ordered by page
func mergeOutputs(fresh, prior []types.PageOutput) []types.PageOutput {
	if len(prior) == 0 {
		return fresh
	}
	seen := make(map[int]bool, len(fresh))
	for _, out := range fresh {
		seen[out.PageNumber] = true
	}
	merged := append([]types.PageOutput(nil), fresh...)
	for _, out := range prior {
		if !seen[out.PageNumber] {
			merged = append(merged, out)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].PageNumber < merged[j].PageNumber })
	return merged
}

func lowestPage(pages []types.PageImage) types.PageImage {
	lowest := pages[0]
	for _, p := range pages[1:] {
		if p.PageNumber < lowest.PageNumber {
			lowest = p
		}
	}
	return lowest
}
