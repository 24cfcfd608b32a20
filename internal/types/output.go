package types

import "encoding/json"

// Chunk is an accepted record together with its system metadata.
// Content holds the serialized record; it is the single source of the content body.
type Chunk struct {
	ChunkInfo  ChunkInfo       `json:"chunk_info"`
	Content    json.RawMessage `json:"content"`
	HumanAudit HumanAudit      `json:"human_audit"`
}

// PageOutput is the result of processing one page.
// Either Chunks is non-empty and Errors is empty, or Chunks is empty;
// a page with zero items and zero errors is a valid empty page.
type PageOutput struct {
	PageNumber int
	RawText    string
	Status     ExtractionStatus
	Records    []ContentRecord
	Chunks     []Chunk
	Errors     []string
	Usage      Usage
}

// NeedsRetry reports whether the page should be re-extracted
func (p PageOutput) NeedsRetry() bool {
	return p.Status != StatusSuccess
}

// FlatChunk is a self-contained record with denormalized guideline context
type FlatChunk struct {
	ChunkID          string          `json:"chunk_id"`
	GuidelineID      string          `json:"guideline_id"`
	GuidelineName    string          `json:"guideline_name"`
	GuidelineVersion string          `json:"guideline_version"`
	Guideline        GuidelineInfo   `json:"guideline"`
	Page             int             `json:"page"`
	Content          json.RawMessage `json:"content"`
	HumanAudit       HumanAudit      `json:"human_audit"`
}

// PageWrapper groups one page's chunks with page-level metadata
type PageWrapper struct {
	PageInfo   PageInfo   `json:"page_info"`
	HumanAudit HumanAudit `json:"human_audit"`
	LLMChunks  []Chunk    `json:"llm_chunks"`
}

// GuidelineOutput is the nested guideline -> page -> chunk projection
type GuidelineOutput struct {
	GuidelineInfo GuidelineInfo `json:"guideline_info"`
	HumanAudit    HumanAudit    `json:"human_audit"`
	Pages         []PageWrapper `json:"pages"`
	TotalPages    int           `json:"total_pages"`
	TotalChunks   int           `json:"total_chunks"`
}

// GuidelineMetadata is what the cover-page bootstrap extracts
type GuidelineMetadata struct {
	GuidelineName     string `json:"guideline_name"`
	GuidelineID       string `json:"guideline_id"`
	GuidelineVersion  string `json:"guideline_version"`
	PublicationDate   string `json:"publication_date"`
	LastUpdatedDate   string `json:"last_updated_date"`
	Organization      string `json:"organization"`
	Country           string `json:"country"`
	JurisdictionLevel string `json:"jurisdiction_level"`
	JurisdictionName  string `json:"jurisdiction_name"`
	Language          string `json:"language"`
	IntendedAudience  string `json:"intended_audience"`
}
