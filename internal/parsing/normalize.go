// Package parsing repairs and decodes raw vision model replies.
package parsing

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// encodingFixes maps UTF-8 sequences misread as Latin-1 back to the intended character.
// The patterns are disjoint, so replacement order does not matter.
var encodingFixes = []string{
	"\u00e2\u0086\u0092", "\u2192", // right arrow
	"\u00e2\u0089\u00a5", "\u2265", // greater than or equal
	"\u00e2\u0089\u00a4", "\u2264", // less than or equal
	"\u00c2\u00b0", "\u00b0",       // degree
	"\u00c2\u00b5", "\u00b5",       // micro
	"\u00e2\u0080\u0093", "\u2013", // en dash
	"\u00e2\u0080\u0094", "\u2014", // em dash
	"\u00e2\u0080\u0099", "\u2019", // right single quote
	"\u00e2\u0080\u0098", "\u2018", // left single quote
	"\u00e2\u0080\u009c", "\u201c", // left double quote
	"\u00e2\u0080\u009d", "\u201d", // right double quote
	"\u00c3\u00a9", "\u00e9",       // e acute
	"\u00c3\u00a8", "\u00e8",       // e grave
	"\u00c3\u00bc", "\u00fc",       // u umlaut
	"\u00c3\u00b6", "\u00f6",       // o umlaut
	"\u00c3\u00a4", "\u00e4",       // a umlaut
	"\u00c3\u00b1", "\u00f1",       // n tilde
	"\u00c2\u00b9", "\u00b9",       // superscript 1
	"\u00c2\u00b2", "\u00b2",       // superscript 2
	"\u00c2\u00b3", "\u00b3",       // superscript 3
}

var encodingReplacer = strings.NewReplacer(encodingFixes...)

const (
	jsonFence = "```json"
	fence     = "```"
)

// FixEncoding repairs known mojibake sequences. It runs the table to a fixed point,
// so applying it twice is the same as applying it once.
func FixEncoding(text string) string {
	for {
		fixed := encodingReplacer.Replace(text)
		if fixed == text {
			return fixed
		}
		text = fixed
	}
}

// StripJSONFence extracts the interior of the first fenced code block, preferring a json-labeled one.
// Text without a fence is only trimmed.
func StripJSONFence(text string) string {
	if _, after, ok := strings.Cut(text, jsonFence); ok {
		return strings.TrimSpace(untilFence(after))
	}
	if _, after, ok := strings.Cut(text, fence); ok {
		return strings.TrimSpace(dropLanguageLabel(untilFence(after)))
	}
	return strings.TrimSpace(text)
}

// Normalize applies encoding repair then fence stripping. It never fails.
func Normalize(raw string) string {
	return StripJSONFence(FixEncoding(raw))
}

// ParseJSONArray decodes normalized text into its top-level elements
func ParseJSONArray(text string) ([]json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, &MalformedResponseError{Message: "model response is not valid JSON", Cause: err}
	}
	if _, ok := decoded.([]any); !ok {
		return nil, &MalformedResponseError{Message: "model response must be a JSON array"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, &MalformedResponseError{Message: "model response is not valid JSON", Cause: err}
	}
	return items, nil
}

// ParseJSONObject decodes normalized text that must hold a single JSON object
func ParseJSONObject(text string) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, &MalformedResponseError{Message: "model response is not valid JSON"}
		}
		return nil, &MalformedResponseError{Message: "model response must be a JSON object"}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &MalformedResponseError{Message: "model response is not valid JSON", Cause: err}
	}
	return obj, nil
}

// untilFence returns s up to the next closing fence, or all of s when unterminated
func untilFence(s string) string {
	before, _, _ := strings.Cut(s, fence)
	return before
}

// dropLanguageLabel removes a one-word label such as "js" from the first line of a fence body
func dropLanguageLabel(body string) string {
	first, rest, ok := strings.Cut(body, "\n")
	if !ok {
		return body
	}
	label := strings.TrimSpace(first)
	if label == "" {
		return rest
	}
	for _, r := range label {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return body
		}
	}
	return rest
}
