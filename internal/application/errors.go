package application

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist or belongs to another user.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write collides with existing data.
	ErrConflict = errors.New("application: conflict")
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
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from a field map into the receiver under prefix.
func (v *ValidationError) merge(prefix string, fields map[string]string) {
	for field, msg := range fields {
		if prefix != "" {
			field = prefix + "." + field
		}
		v.add(field, msg)
	}
}
