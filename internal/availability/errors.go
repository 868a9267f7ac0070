package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrBusy is returned when a mutation is attempted while another one is still in flight.
	ErrBusy = errors.New("availability: operation already in progress")
	// ErrInvalidTransition is returned when the editor state does not allow the requested step.
	ErrInvalidTransition = errors.New("availability: invalid state transition")
	// ErrActivityNotFound is returned when an activity reference does not resolve.
	ErrActivityNotFound = errors.New("availability: activity not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// PersistenceError reports a failed backend call. The local model was left untouched.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("availability: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the backend error.
func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
