package validation

import (
	"fmt"
	"strings"

	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// MissingContentType is reported in place of an absent discriminator
const MissingContentType = "<missing>"

// UnknownContentTypeError is reported for an item whose discriminator is absent or not a known content type
type UnknownContentTypeError struct {
	Index int
	Value string
}

func (e *UnknownContentTypeError) Error() string {
	return fmt.Sprintf("Item %d: Unknown content_type '%s'. Must be one of: %s", e.Index, e.Value, knownTypes())
}

// SchemaViolationError is reported for an item that does not conform to its variant's schema
type SchemaViolationError struct {
	Index       int
	ContentType types.ContentType
	Violations  []schemas.FieldError
}

func (e *SchemaViolationError) Error() string {
	summary := (&schemas.ValidationError{Errors: e.Violations}).Summary()
	return fmt.Sprintf("Item %d (type: %s): %s", e.Index, e.ContentType, summary)
}

func knownTypes() string {
	all := types.AllContentTypes()
	names := make([]string, len(all))
	for i, ct := range all {
		names[i] = string(ct)
	}
	return strings.Join(names, ", ")
}
