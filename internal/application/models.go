package application

import (
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

// SaveStudentParams wraps a create-or-update request. An empty Student.ID creates a new
// student.
type SaveStudentParams struct {
	UserID  string
	Student profile.Student
}

// ReplaceAvailabilityParams wraps the data required to overwrite a student's week.
type ReplaceAvailabilityParams struct {
	UserID    string
	StudentID string
	Week      timetable.Week
}

// ScheduleTuitionInput captures caller provided lesson fields.
type ScheduleTuitionInput struct {
	SubjectID string `json:"subject_id" validate:"notblank"`
	Day       string `json:"day" validate:"notblank"`
	Start     string `json:"start" validate:"notblank"`
	End       string `json:"end" validate:"notblank"`
}

// LayoutParams selects the grid column to compute.
type LayoutParams struct {
	UserID    string
	StudentID string
	Day       timetable.Day
	Grid      timetable.Grid
}

// DayLayout is the positioned content of one day column.
type DayLayout struct {
	StudentID string
	Day       timetable.Day
	Grid      timetable.Grid
	Bubbles   []timetable.Bubble
}
