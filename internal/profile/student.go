// Package profile holds the student entity edited by the wizard and stored by the backend.
package profile

import (
	"strings"

	"github.com/example/tuition-scheduler/internal/timetable"
)

// Student is a tutored student together with their subjects and weekly availability.
type Student struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	Grade        int            `json:"grade"`
	Subjects     []Subject      `json:"subjects"`
	Availability timetable.Week `json:"availability"`
}

// Subject is a taught subject. SharedWith lists other students attending the same lessons.
type Subject struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	LessonsPerWeek int      `json:"lessons_per_week"`
	SharedWith     []string `json:"shared_with"`
}

// FullName joins the first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Clone returns a deep copy of the student.
func (s Student) Clone() Student {
	out := s
	out.Availability = s.Availability.Clone()
	if s.Subjects != nil {
		out.Subjects = make([]Subject, len(s.Subjects))
		for i, subject := range s.Subjects {
			out.Subjects[i] = subject.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the subject.
func (s Subject) Clone() Subject {
	out := s
	if s.SharedWith != nil {
		out.SharedWith = append([]string(nil), s.SharedWith...)
	}
	return out
}

// SubjectKey normalizes a subject name for duplicate detection.
func SubjectKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindSubject returns the index of the subject with the given name, or -1.
func (s Student) FindSubject(name string) int {
	key := SubjectKey(name)
	for i, subject := range s.Subjects {
		if SubjectKey(subject.Name) == key {
			return i
		}
	}
	return -1
}
