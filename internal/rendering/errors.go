// Package rendering turns source documents into page images for the vision model.
package rendering

import "fmt"

// RenderError represents a failure to produce page images. Page is 0 when the
// failure concerns the whole document.
type RenderError struct {
	Page    int
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("render error: %s", msg)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
