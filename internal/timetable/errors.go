package timetable

import "fmt"

// MalformedDataError describes an activity that could not be interpreted and was skipped.
// Index is -1 when the whole day key was rejected.
type MalformedDataError struct {
	Day    string
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *MalformedDataError) Error() string {
	if e == nil {
		return ""
	}
	if e.Index < 0 {
		return fmt.Sprintf("timetable: malformed day %q: %s", e.Day, e.Reason)
	}
	return fmt.Sprintf("timetable: malformed entry %d on %q: %s", e.Index, e.Day, e.Reason)
}
