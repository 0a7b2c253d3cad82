package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRejected is matched by invariant violations such as an unbalanced
	// journal or an adjustment that would drive stock negative.
	ErrRejected = errors.New("rejected")
	// ErrConflict indicates a write that clashes with existing state.
	ErrConflict = errors.New("conflict")
)

// FieldError names one offending input field. Index is the zero based line
// position for line-level errors and -1 otherwise.
type FieldError struct {
	Field   string `json:"field"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Key renders the field path, e.g. "lines[2].quantity".
func (f FieldError) Key() string {
	if f.Index < 0 {
		return f.Field
	}
	if f.Field == "" {
		return fmt.Sprintf("lines[%d]", f.Index)
	}
	return fmt.Sprintf("lines[%d].%s", f.Index, f.Field)
}

// ValidationError carries field level feedback for malformed input.
type ValidationError struct {
	Fields []FieldError
}

// NewFieldError builds a ValidationError for a single document-level field.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Index: -1, Message: message}}}
}

// Add appends a field error.
func (e *ValidationError) Add(index int, field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Index: index, Message: message})
}

// OrNil returns nil when no field error was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Map flattens the error into field path -> message.
func (e *ValidationError) Map() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Key()] = f.Message
	}
	return out
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Key()+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
