package prompts

import (
	"fmt"
	"strings"
)

// PageContext identifies the guideline and page a prompt is for
type PageContext struct {
	GuidelineID      string
	GuidelineName    string
	GuidelineVersion string
	PageNumber       int
}

// BuildPagePrompt appends the guideline context block to base. Values are inserted verbatim.
func BuildPagePrompt(base string, pc PageContext) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nGuideline Context:\n")
	fmt.Fprintf(&sb, "- guideline_id: %s\n", pc.GuidelineID)
	fmt.Fprintf(&sb, "- guideline_name: %s\n", pc.GuidelineName)
	fmt.Fprintf(&sb, "- guideline_version: %s\n", pc.GuidelineVersion)
	fmt.Fprintf(&sb, "- page: %d\n", pc.PageNumber)
	return sb.String()
}
