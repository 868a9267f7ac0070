package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

var (
	studentCounter uint64
	subjectCounter uint64
	tuitionCounter uint64
)

// ----------------------------- Student fixtures -----------------------------

// StudentFixture is a deterministic student that can be materialised for domain or
// persistence tests.
type StudentFixture struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Grade     int
	Subjects  []profile.Subject
	Week      timetable.Week
	CreatedAt time.Time
}

// StudentOption configures the generated student fixture.
type StudentOption func(*StudentFixture)

// NewStudentFixture returns a student with sleep every night from 22:00 to 06:00 and
// school on weekdays from 07:30 to 14:00, plus any overrides.
func NewStudentFixture(opts ...StudentOption) StudentFixture {
	idx := atomic.AddUint64(&studentCounter, 1)
	fixture := StudentFixture{
		ID:        fmt.Sprintf("student-%03d", idx),
		UserID:    "user-001",
		FirstName: "Student",
		LastName:  fmt.Sprintf("%03d", idx),
		Grade:     8,
		Week:      baselineWeek(fmt.Sprintf("student-%03d", idx)),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func baselineWeek(owner string) timetable.Week {
	var week timetable.Week
	policy := timetable.DefaultPolicy()
	for _, d := range timetable.Days() {
		if policy.Allows(timetable.School, d) {
			week[d] = append(week[d], timetable.Activity{
				ID:   fmt.Sprintf("%s-school-%d", owner, d),
				Type: timetable.School,
				Day:  d,
				Span: timetable.Span{Start: timetable.MustClock("07:30"), End: timetable.MustClock("14:00")},
			})
		}
		week[d] = append(week[d], timetable.Activity{
			ID:   fmt.Sprintf("%s-sleep-%d", owner, d),
			Type: timetable.Sleep,
			Day:  d,
			Span: timetable.Span{Start: timetable.MustClock("22:00"), End: timetable.MustClock("06:00")},
		})
	}
	return week
}

// WithStudentID overrides the generated student ID.
func WithStudentID(id string) StudentOption {
	return func(f *StudentFixture) {
		f.ID = id
	}
}

// WithStudentOwner sets the user that owns the student.
func WithStudentOwner(userID string) StudentOption {
	return func(f *StudentFixture) {
		f.UserID = userID
	}
}

// WithStudentName overrides the generated names.
func WithStudentName(first, last string) StudentOption {
	return func(f *StudentFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithStudentGrade overrides the grade.
func WithStudentGrade(grade int) StudentOption {
	return func(f *StudentFixture) {
		f.Grade = grade
	}
}

// WithSubject appends a subject with a generated ID.
func WithSubject(name string, lessonsPerWeek int, sharedWith ...string) StudentOption {
	return func(f *StudentFixture) {
		idx := atomic.AddUint64(&subjectCounter, 1)
		f.Subjects = append(f.Subjects, profile.Subject{
			ID:             fmt.Sprintf("subject-%03d", idx),
			Name:           name,
			LessonsPerWeek: lessonsPerWeek,
			SharedWith:     append([]string{}, sharedWith...),
		})
	}
}

// WithActivity appends an availability activity. Times use "HH:MM".
func WithActivity(day timetable.Day, t timetable.ActivityType, start, end string) StudentOption {
	return func(f *StudentFixture) {
		f.Week[day] = append(f.Week[day], timetable.Activity{
			ID:   fmt.Sprintf("%s-%s-%d-%d", f.ID, t, day, len(f.Week[day])),
			Type: t,
			Day:  day,
			Span: timetable.Span{Start: timetable.MustClock(start), End: timetable.MustClock(end)},
		})
	}
}

// WithEmptyWeek clears the default availability.
func WithEmptyWeek() StudentOption {
	return func(f *StudentFixture) {
		f.Week = timetable.Week{}
	}
}

// Profile returns the fixture as the domain student.
func (f StudentFixture) Profile() profile.Student {
	student := profile.Student{
		ID:           f.ID,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Grade:        f.Grade,
		Subjects:     f.Subjects,
		Availability: f.Week,
	}
	return student.Clone()
}

// Persistence returns the fixture as a persistence.Student.
func (f StudentFixture) Persistence() persistence.Student {
	stored := persistence.Student{
		ID:        f.ID,
		UserID:    f.UserID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Grade:     f.Grade,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
	for i, s := range f.Subjects {
		stored.Subjects = append(stored.Subjects, persistence.Subject{
			ID:             s.ID,
			StudentID:      f.ID,
			Name:           s.Name,
			LessonsPerWeek: s.LessonsPerWeek,
			SharedWith:     append([]string{}, s.SharedWith...),
			Position:       i,
		})
	}
	for _, d := range timetable.Days() {
		for i, a := range f.Week[d] {
			stored.Activities = append(stored.Activities, persistence.Activity{
				ID:          a.ID,
				StudentID:   f.ID,
				Day:         int(d),
				Type:        string(a.Type),
				StartMinute: a.Start.Minutes(),
				EndMinute:   a.End.Minutes(),
				Position:    i,
			})
		}
	}
	return stored
}

// ----------------------------- Tuition fixtures -----------------------------

// NewTuitionFixture returns a persistence tuition for subjectID. Times use "HH:MM".
func NewTuitionFixture(subjectID string, day timetable.Day, start, end string) persistence.Tuition {
	idx := atomic.AddUint64(&tuitionCounter, 1)
	return persistence.Tuition{
		ID:          fmt.Sprintf("tuition-%03d", idx),
		SubjectID:   subjectID,
		Day:         int(day),
		StartMinute: timetable.MustClock(start).Minutes(),
		EndMinute:   timetable.MustClock(end).Minutes(),
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Second),
	}
}
