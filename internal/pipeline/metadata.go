package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/parsing"
	"github.com/jonathan/guideline-extractor/internal/prompts"
	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// Bootstrap defaults
const (
	MetadataDPI       = 150
	MetadataMaxTokens = 1000
	maxGuidelineIDLen = 50
)

// BootstrapMetadata extracts guideline metadata from the first page. The reply must be
// a single JSON object that satisfies the metadata schema.
func BootstrapMetadata(ctx context.Context, client llm.VisionClient, registry *schemas.Registry, firstPage types.PageImage, log *logger.Logger) (*types.GuidelineMetadata, types.Usage, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()

	prompt, err := prompts.LoadMetadata()
	if err != nil {
		return nil, types.Usage{}, err
	}

	raw, usage, err := client.Extract(ctx, prompt, firstPage.Data, firstPage.MimeType)
	if err != nil {
		return nil, usage, fmt.Errorf("metadata extraction failed: %w", err)
	}

	normalized := parsing.Normalize(raw)
	if _, err := parsing.ParseJSONObject(normalized); err != nil {
		return nil, usage, fmt.Errorf("metadata reply rejected: %w", err)
	}
	if err := registry.ValidateMetadata([]byte(normalized)); err != nil {
		return nil, usage, fmt.Errorf("metadata reply rejected: %w", err)
	}

	var meta types.GuidelineMetadata
	if err := json.Unmarshal([]byte(normalized), &meta); err != nil {
		return nil, usage, fmt.Errorf("metadata reply rejected: %w", err)
	}

	log.Info("pipeline.metadata.done",
		"guideline_name", meta.GuidelineName,
		"guideline_version", meta.GuidelineVersion,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &meta, usage, nil
}

// DeriveGuidelineID lowercases name, replaces every space with an underscore and keeps at
// most 50 runes. Surrounding spaces are not trimmed.
// The result is not guaranteed to be unique across guidelines.
func DeriveGuidelineID(name string) string {
	id := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	if r := []rune(id); len(r) > maxGuidelineIDLen {
		id = string(r[:maxGuidelineIDLen])
	}
	return id
}

// GuidelineOverrides are operator-supplied identity fields. Non-empty values win over extracted ones.
type GuidelineOverrides struct {
	GuidelineID      string
	GuidelineName    string
	GuidelineVersion string
	Country          string
	Jurisdiction     string
	Organization     string
	RegulatoryStatus types.RegulatoryStatus
}

// ToGuidelineInfo builds the run identity from extracted metadata (which may be nil) and overrides
func ToGuidelineInfo(meta *types.GuidelineMetadata, overrides GuidelineOverrides) (types.GuidelineInfo, error) {
	var info types.GuidelineInfo
	if meta != nil {
		info = types.GuidelineInfo{
			GuidelineName:    meta.GuidelineName,
			GuidelineVersion: meta.GuidelineVersion,
			Country:          meta.Country,
			Jurisdiction:     firstNonEmpty(meta.JurisdictionName, meta.JurisdictionLevel),
			Organization:     meta.Organization,
		}
		if meta.GuidelineID != "" {
			info.GuidelineID = DeriveGuidelineID(meta.GuidelineID)
		}
	}
	info.RegulatoryStatus = types.RegulatoryDraft

	info.GuidelineName = firstNonEmpty(overrides.GuidelineName, info.GuidelineName)
	info.GuidelineVersion = firstNonEmpty(overrides.GuidelineVersion, info.GuidelineVersion)
	info.Country = firstNonEmpty(overrides.Country, info.Country)
	info.Jurisdiction = firstNonEmpty(overrides.Jurisdiction, info.Jurisdiction)
	info.Organization = firstNonEmpty(overrides.Organization, info.Organization)
	if overrides.RegulatoryStatus != "" {
		info.RegulatoryStatus = overrides.RegulatoryStatus
	}

	switch {
	case overrides.GuidelineID != "":
		info.GuidelineID = overrides.GuidelineID
	case info.GuidelineID == "":
		info.GuidelineID = DeriveGuidelineID(info.GuidelineName)
	}

	if err := validator.New().Struct(info); err != nil {
		return types.GuidelineInfo{}, fmt.Errorf("invalid guideline info: %w", err)
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
