package parsing

import "fmt"

// MalformedResponseError is returned when a model reply is not a JSON value of the expected shape
type MalformedResponseError struct {
	Message string
	Cause   error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
