// Package pipeline drives page images through extraction, validation and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/parsing"
	"github.com/jonathan/guideline-extractor/internal/prompts"
	"github.com/jonathan/guideline-extractor/internal/types"
	"github.com/jonathan/guideline-extractor/internal/validation"
)

// ProcessorOptions holds the collaborators of a Processor
type ProcessorOptions struct {
	Client     llm.VisionClient
	Store      artifacts.Store
	Validator  *validation.Validator
	BasePrompt string
	Guideline  types.GuidelineInfo
	CreatedBy  string
	// Now defaults to time.Now
	Now    func() time.Time
	Logger *logger.Logger
}

// Processor extracts a single page. It is safe for concurrent use across distinct pages.
type Processor struct {
	client     llm.VisionClient
	store      artifacts.Store
	validator  *validation.Validator
	basePrompt string
	guideline  types.GuidelineInfo
	createdBy  string
	now        func() time.Time
	marshal    func(v any) ([]byte, error)
	log        *logger.Logger
}

// NewProcessor validates opts and returns a Processor
func NewProcessor(opts ProcessorOptions) (*Processor, error) {
	if opts.Client == nil {
		return nil, errors.New("vision client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("artifact store is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("validator is required")
	}
	if strings.TrimSpace(opts.BasePrompt) == "" {
		return nil, &prompts.PromptUnavailableError{Source: "(base prompt)", Message: "prompt is empty"}
	}
	if opts.Guideline.GuidelineID == "" {
		return nil, errors.New("guideline id is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Processor{
		client:     opts.Client,
		store:      opts.Store,
		validator:  opts.Validator,
		basePrompt: opts.BasePrompt,
		guideline:  opts.Guideline,
		createdBy:  opts.CreatedBy,
		now:        now,
		marshal:    artifacts.MarshalJSON,
		log:        log,
	}, nil
}

// ProcessPage runs prompt, transport, normalization, validation and persistence for
// one page. Failures are reported in the returned PageOutput, never as an error.
// onDone, when set, is called exactly once after persistence.
func (p *Processor) ProcessPage(ctx context.Context, page types.PageImage, onDone func(pageNumber int)) types.PageOutput {
	start := time.Now()
	out := types.PageOutput{PageNumber: page.PageNumber}

	prompt := prompts.BuildPagePrompt(p.basePrompt, prompts.PageContext{
		GuidelineID:      p.guideline.GuidelineID,
		GuidelineName:    p.guideline.GuidelineName,
		GuidelineVersion: p.guideline.GuidelineVersion,
		PageNumber:       page.PageNumber,
	})

	raw, usage, err := p.client.Extract(ctx, prompt, page.Data, page.MimeType)
	out.Usage = usage

	switch {
	case err != nil:
		out.Status = types.StatusError
		out.Errors = []string{fmt.Sprintf("Transport failure: %v", err)}
		p.persist(ctx, &out, map[string]string{
			artifacts.PageErrorsName(page.PageNumber): strings.Join(out.Errors, "\n"),
		}, nil)

	default:
		out.RawText = raw
		result := p.validator.ValidateContent(parsing.Normalize(raw))
		if !result.OK() {
			out.Status = types.StatusValidationFailed
			out.Errors = result.Errors
			p.persist(ctx, &out, map[string]string{
				artifacts.PageRawName(page.PageNumber):    raw,
				artifacts.PageErrorsName(page.PageNumber): strings.Join(out.Errors, "\n"),
			}, nil)
			break
		}

		chunks, err := p.buildChunks(page.PageNumber, result.Records)
		if err != nil {
			out.Status = types.StatusError
			out.Errors = []string{fmt.Sprintf("Encoding failure: %v", err)}
			p.persist(ctx, &out, map[string]string{
				artifacts.PageRawName(page.PageNumber):    raw,
				artifacts.PageErrorsName(page.PageNumber): strings.Join(out.Errors, "\n"),
			}, nil)
			break
		}
		out.Status = types.StatusSuccess
		out.Records = result.Records
		out.Chunks = chunks
		p.persist(ctx, &out, map[string]string{
			artifacts.PageRawName(page.PageNumber): raw,
		}, map[string]any{
			artifacts.PageJSONName(page.PageNumber): chunks,
		})
	}

	p.log.Info("pipeline.page.done",
		"page", page.PageNumber,
		"status", string(out.Status),
		"chunks", len(out.Chunks),
		"errors", len(out.Errors),
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if onDone != nil {
		onDone(page.PageNumber)
	}
	return out
}

// buildChunks stamps identity and a fresh audit on every record, in reply order
func (p *Processor) buildChunks(pageNumber int, records []types.ContentRecord) ([]types.Chunk, error) {
	now := p.now()
	chunks := make([]types.Chunk, 0, len(records))
	for i, rec := range records {
		content, err := p.marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		chunks = append(chunks, types.Chunk{
			ChunkInfo:  types.ChunkInfo{ChunkID: types.ChunkID(p.guideline.GuidelineID, pageNumber, i+1)},
			Content:    json.RawMessage(content),
			HumanAudit: types.NewHumanAudit(p.createdBy, now),
		})
	}
	return chunks, nil
}

// persist writes the page artifacts. A failed write is recorded on the page and
// downgrades it to error.
func (p *Processor) persist(ctx context.Context, out *types.PageOutput, texts map[string]string, docs map[string]any) {
	var failures []string

	for name, text := range texts {
		if err := p.store.SaveText(ctx, name, text); err != nil {
			failures = append(failures, fmt.Sprintf("Persistence failure: %s: %v", name, err))
		}
	}
	for name, doc := range docs {
		if err := p.store.SaveJSON(ctx, name, doc); err != nil {
			failures = append(failures, fmt.Sprintf("Persistence failure: %s: %v", name, err))
		}
	}
	if len(failures) == 0 {
		return
	}

	p.log.Error("pipeline.page.persist_failed",
		"page", out.PageNumber,
		"failures", len(failures),
		"error", strings.Join(failures, "; "),
	)
	out.Status = types.StatusError
	out.Records = nil
	out.Chunks = nil
	out.Errors = append(out.Errors, failures...)
}
