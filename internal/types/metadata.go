package types

import (
	"fmt"
	"time"
)

// AuditStatus is the review workflow state of a chunk, page, or guideline
type AuditStatus string

// Audit statuses
const (
	AuditDraft         AuditStatus = "draft"
	AuditPendingReview AuditStatus = "pending_review"
	AuditApproved      AuditStatus = "approved"
	AuditRejected      AuditStatus = "rejected"
)

// HumanAudit carries review metadata. It has the same shape at every level.
type HumanAudit struct {
	Status       AuditStatus `json:"status" validate:"oneof=draft pending_review approved rejected"`
	Version      int         `json:"version" validate:"gte=1"`
	CreatedAt    string      `json:"created_at"`
	CreatedBy    string      `json:"created_by"`
	ReviewedBy   string      `json:"reviewed_by"`
	ApprovalDate string      `json:"approval_date"`
	Notes        string      `json:"notes"`
}

// NewHumanAudit returns a fresh draft audit created by createdBy at now.
// An empty createdBy is recorded as "system".
func NewHumanAudit(createdBy string, now time.Time) HumanAudit {
	if createdBy == "" {
		createdBy = "system"
	}
	return HumanAudit{
		Status:    AuditDraft,
		Version:   1,
		CreatedAt: now.UTC().Format(time.RFC3339),
		CreatedBy: createdBy,
	}
}

// RegulatoryStatus describes the standing of a guideline document
type RegulatoryStatus string

// Regulatory statuses
const (
	RegulatoryOfficial RegulatoryStatus = "official"
	RegulatoryDraft    RegulatoryStatus = "draft"
	RegulatoryGuidance RegulatoryStatus = "guidance"
	RegulatoryArchived RegulatoryStatus = "archived"
)

// GuidelineInfo identifies the source document
type GuidelineInfo struct {
	GuidelineID      string           `json:"guideline_id" validate:"required"`
	GuidelineName    string           `json:"guideline_name" validate:"required"`
	GuidelineVersion string           `json:"guideline_version"`
	Country          string           `json:"country"`
	Jurisdiction     string           `json:"jurisdiction"`
	Organization     string           `json:"organization"`
	RegulatoryStatus RegulatoryStatus `json:"regulatory_status" validate:"oneof=official draft guidance archived"`
}

// ExtractionStatus is the outcome of extracting one page
type ExtractionStatus string

// Extraction statuses
const (
	StatusSuccess          ExtractionStatus = "success"
	StatusValidationFailed ExtractionStatus = "validation_failed"
	StatusError            ExtractionStatus = "error"
)

// PageInfo is the page-level outcome. NeedsRetry is true iff Status is not success.
type PageInfo struct {
	PageNumber       int              `json:"page_number"`
	ExtractionDate   string           `json:"extraction_date"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	NeedsRetry       bool             `json:"needs_retry"`
}

// NewPageInfo builds a PageInfo whose retry flag follows from status
func NewPageInfo(pageNumber int, status ExtractionStatus, now time.Time) PageInfo {
	return PageInfo{
		PageNumber:       pageNumber,
		ExtractionDate:   now.UTC().Format(time.RFC3339),
		ExtractionStatus: status,
		NeedsRetry:       status != StatusSuccess,
	}
}

// ChunkInfo is the system-assigned identity of an accepted record
type ChunkInfo struct {
	ChunkID string `json:"chunk_id"`
}

// ChunkID formats the identity of the ordinal-th record (1-based) on a page
func ChunkID(guidelineID string, pageNumber, ordinal int) string {
	return fmt.Sprintf("%s_p%03d_%d", guidelineID, pageNumber, ordinal)
}

// PageImage is one rendered page
type PageImage struct {
	PageNumber int
	Data       []byte
	MimeType   string
}

// Usage holds token counters reported by the vision model
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of u and other
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}
