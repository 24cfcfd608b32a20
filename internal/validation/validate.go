// Package validation turns a normalized model reply into typed content records under an all-or-nothing policy.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/guideline-extractor/internal/parsing"
	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// protectedKeys are system-managed and never accepted from the model
var protectedKeys = []string{"human_audit", "audit", "chunk_info"}

// Result is the outcome of validating one page reply.
// Records is empty whenever Errors is non-empty.
type Result struct {
	Records []types.ContentRecord
	Errors  []string
	// Issues holds the typed error behind each entry of Errors, in the same order
	Issues []error
}

// OK reports whether the page was accepted
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Validator dispatches items to their variant schema
type Validator struct {
	registry *schemas.Registry
}

// New returns a Validator backed by registry
func New(registry *schemas.Registry) *Validator {
	return &Validator{registry: registry}
}

// ValidateContent parses normalized text as a JSON array and validates every element
func (v *Validator) ValidateContent(normalized string) Result {
	items, err := parsing.ParseJSONArray(normalized)
	if err != nil {
		return Result{
			Errors: []string{fmt.Sprintf("Malformed response: %v", err)},
			Issues: []error{err},
		}
	}
	return v.ValidateItems(items)
}

// ValidateItems validates already-parsed array elements. Any failing item discards every record.
func (v *Validator) ValidateItems(items []json.RawMessage) Result {
	var result Result
	records := make([]types.ContentRecord, 0, len(items))

	for i, item := range items {
		rec, err := v.validateItem(i, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Issues = append(result.Issues, err)
			continue
		}
		records = append(records, rec)
	}

	if len(result.Errors) == 0 {
		result.Records = records
	}
	return result
}

func (v *Validator) validateItem(index int, item json.RawMessage) (types.ContentRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return nil, &UnknownContentTypeError{Index: index, Value: MissingContentType}
	}

	for _, key := range protectedKeys {
		delete(fields, key)
	}

	ct, ok := discriminator(fields)
	if !ok {
		return nil, &UnknownContentTypeError{Index: index, Value: string(ct)}
	}

	doc, err := json.Marshal(fields)
	if err != nil {
		return nil, violation(index, ct, "(root)", err.Error())
	}

	if err := v.registry.Validate(ct, doc); err != nil {
		var schemaErr *schemas.ValidationError
		if errors.As(err, &schemaErr) {
			return nil, &SchemaViolationError{Index: index, ContentType: ct, Violations: schemaErr.Errors}
		}
		return nil, violation(index, ct, "(root)", err.Error())
	}

	rec, _ := types.NewContentRecord(ct)
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, violation(index, ct, "(root)", err.Error())
	}
	types.FillEmpty(rec)

	if checks := postChecks(rec); len(checks) > 0 {
		return nil, &SchemaViolationError{Index: index, ContentType: ct, Violations: checks}
	}

	return rec, nil
}

// discriminator reads content_type. The returned value is what gets reported when ok is false.
func discriminator(fields map[string]json.RawMessage) (types.ContentType, bool) {
	raw, present := fields["content_type"]
	if !present {
		return MissingContentType, false
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return types.ContentType(raw), false
	}

	ct := types.ContentType(value)
	return ct, ct.Valid()
}

// postChecks enforces constraints that the schemas cannot express
func postChecks(rec types.ContentRecord) []schemas.FieldError {
	var out []schemas.FieldError

	if table, ok := rec.(*types.ReferenceTable); ok {
		for i, row := range table.Rows {
			logic := row.RowLogic
			if logic == nil || logic.Min == nil || logic.Max == nil {
				continue
			}
			if *logic.Min > *logic.Max {
				out = append(out, schemas.FieldError{
					Field:   fmt.Sprintf("rows.%d.row_logic", i),
					Message: fmt.Sprintf("min (%g) must not exceed max (%g)", *logic.Min, *logic.Max),
				})
			}
		}
	}

	return out
}

func violation(index int, ct types.ContentType, field, msg string) error {
	return &SchemaViolationError{
		Index:       index,
		ContentType: ct,
		Violations:  []schemas.FieldError{{Field: field, Message: msg}},
	}
}
