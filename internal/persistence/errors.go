package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrLocked is returned when the database stayed locked for the whole busy timeout.
	ErrLocked = errors.New("persistence: database locked")
)
