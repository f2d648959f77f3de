// Package fields parses, validates, and formats the scalar field types used
// by the interchange feed: teacher reference numbers, gender codes, national
// insurance numbers, calendar dates, and fixed-width positional text.
package fields

import "fmt"

// Code classifies a field-level validation failure.
type Code string

const (
	CodeMissingRequiredField Code = "missing_required_field"
	CodeInvalidFormat        Code = "invalid_format"
	CodeInvalidValue         Code = "invalid_value"
	CodeFutureDate           Code = "future_date"
)

// Error is a single field-level validation failure. Errors are accumulated
// per row rather than thrown; the message text is what support staff see in
// the transaction record, so it must stand alone.
type Error struct {
	Code    Code
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func missing(field string) *Error {
	return &Error{
		Code:    CodeMissingRequiredField,
		Field:   field,
		Message: fmt.Sprintf("Missing required field %s", field),
	}
}

func invalidFormat(field, value string) *Error {
	return &Error{
		Code:    CodeInvalidFormat,
		Field:   field,
		Message: fmt.Sprintf("Invalid format for %s: %q", field, value),
	}
}

func invalidValue(field, value string) *Error {
	return &Error{
		Code:    CodeInvalidValue,
		Field:   field,
		Message: fmt.Sprintf("Invalid value for %s: %q", field, value),
	}
}
