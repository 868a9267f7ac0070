package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
	"github.com/example/tuition-scheduler/internal/validation"
)

// LessonSource provides decoded subject timetables for layouts.
type LessonSource interface {
	Lessons(ctx context.Context, subjectID string) ([]timetable.Lesson, error)
	InvalidateSubjects(ctx context.Context, subjectIDs ...string)
}

// StudentService orchestrates validation and persistence for students and their availability.
type StudentService struct {
	students    persistence.StudentRepository
	lessons     LessonSource
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewStudentService constructs a student service with the provided dependencies.
func NewStudentService(students persistence.StudentRepository, lessons LessonSource, idGenerator func() string, now func() time.Time) *StudentService {
	return NewStudentServiceWithLogger(students, lessons, idGenerator, now, nil)
}

// NewStudentServiceWithLogger constructs a student service with a specified logger.
func NewStudentServiceWithLogger(students persistence.StudentRepository, lessons LessonSource, idGenerator func() string, now func() time.Time, logger *slog.Logger) *StudentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &StudentService{students: students, lessons: lessons, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *StudentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "StudentService", operation, attrs...)
}

// SaveStudent validates the student and creates or updates it. Missing ids on the student,
// its subjects and its activities are assigned.
func (s *StudentService) SaveStudent(ctx context.Context, params SaveStudentParams) (student profile.Student, err error) {
	if s == nil {
		err = fmt.Errorf("StudentService is nil")
		return
	}
	if s.students == nil {
		err = fmt.Errorf("student repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SaveStudent",
		"user_id", params.UserID,
		"student_id", params.Student.ID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save student", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("student_id", student.ID).InfoContext(ctx, "student saved")
	}()

	if strings.TrimSpace(params.UserID) == "" {
		err = ErrNotFound
		return
	}

	draft := normalizeStudent(params.Student)
	if err = validateStudent(draft); err != nil {
		return
	}
	s.assignIDs(&draft)

	stored := toPersistenceStudent(params.UserID, draft)
	stored.UpdatedAt = s.now()
	if err = s.students.UpsertStudent(ctx, stored); err != nil {
		err = mapStudentRepoError(err)
		return
	}

	var reloaded persistence.Student
	reloaded, err = s.students.GetStudent(ctx, params.UserID, draft.ID)
	if err != nil {
		err = mapStudentRepoError(err)
		return
	}
	student = toProfileStudent(reloaded, logger)
	return
}

// GetStudent loads one of the user's students.
func (s *StudentService) GetStudent(ctx context.Context, userID, studentID string) (profile.Student, error) {
	if s == nil {
		return profile.Student{}, fmt.Errorf("StudentService is nil")
	}
	if s.students == nil {
		return profile.Student{}, ErrNotFound
	}

	logger := s.loggerWith(ctx, "GetStudent", "user_id", userID, "student_id", studentID)

	stored, err := s.students.GetStudent(ctx, userID, studentID)
	if err != nil {
		err = mapStudentRepoError(err)
		if !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to load student", "error", err, "error_kind", ErrorKind(err))
		}
		return profile.Student{}, err
	}
	return toProfileStudent(stored, logger), nil
}

// ListStudents returns the user's students ordered by name.
func (s *StudentService) ListStudents(ctx context.Context, userID string) (students []profile.Student, err error) {
	if s == nil {
		err = fmt.Errorf("StudentService is nil")
		return
	}
	if s.students == nil {
		return []profile.Student{}, nil
	}

	logger := s.loggerWith(ctx, "ListStudents", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list students", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "students listed", "student_count", len(students))
	}()

	var stored []persistence.Student
	stored, err = s.students.ListStudents(ctx, userID)
	if err != nil {
		err = mapStudentRepoError(err)
		return
	}

	students = make([]profile.Student, 0, len(stored))
	for _, st := range stored {
		students = append(students, toProfileStudent(st, logger))
	}
	return
}

// DeleteStudent removes the student together with its subjects and their lessons.
func (s *StudentService) DeleteStudent(ctx context.Context, userID, studentID string) error {
	if s == nil {
		return fmt.Errorf("StudentService is nil")
	}
	if s.students == nil {
		return fmt.Errorf("student repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteStudent", "user_id", userID, "student_id", studentID)

	existing, err := s.students.GetStudent(ctx, userID, studentID)
	if err == nil {
		err = s.students.DeleteStudent(ctx, userID, studentID)
	}
	if err != nil {
		err = mapStudentRepoError(err)
		logger.ErrorContext(ctx, "failed to delete student", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if s.lessons != nil {
		ids := make([]string, 0, len(existing.Subjects))
		for _, subject := range existing.Subjects {
			ids = append(ids, subject.ID)
		}
		s.lessons.InvalidateSubjects(ctx, ids...)
	}

	logger.InfoContext(ctx, "student deleted")
	return nil
}

// ReplaceAvailability overwrites the student's week. It backs the editor's live mode.
func (s *StudentService) ReplaceAvailability(ctx context.Context, params ReplaceAvailabilityParams) (student profile.Student, err error) {
	if s == nil {
		err = fmt.Errorf("StudentService is nil")
		return
	}
	if s.students == nil {
		err = fmt.Errorf("student repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ReplaceAvailability",
		"user_id", params.UserID,
		"student_id", params.StudentID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to replace availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability replaced", "activity_count", params.Week.Len())
	}()

	vErr := &ValidationError{}
	validateWeek(vErr, params.Week)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	week := params.Week.Clone()
	fileDays(&week)
	s.assignActivityIDs(&week)
	if err = s.students.ReplaceActivities(ctx, params.UserID, params.StudentID, toPersistenceActivities(params.StudentID, week)); err != nil {
		err = mapStudentRepoError(err)
		return
	}

	var reloaded persistence.Student
	reloaded, err = s.students.GetStudent(ctx, params.UserID, params.StudentID)
	if err != nil {
		err = mapStudentRepoError(err)
		return
	}
	student = toProfileStudent(reloaded, logger)
	return
}

// Layout positions the student's availability and lessons for one day on the grid.
func (s *StudentService) Layout(ctx context.Context, params LayoutParams) (layout DayLayout, err error) {
	if s == nil {
		err = fmt.Errorf("StudentService is nil")
		return
	}

	vErr := &ValidationError{}
	if !params.Day.Valid() {
		vErr.add("day", "must be a day of the week")
	}
	if gridErr := params.Grid.Validate(); gridErr != nil {
		vErr.add("grid", gridErr.Error())
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var student profile.Student
	student, err = s.GetStudent(ctx, params.UserID, params.StudentID)
	if err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Layout", "student_id", params.StudentID, "day", params.Day.String())

	var lessons []timetable.Lesson
	if s.lessons != nil {
		for _, subject := range student.Subjects {
			var subjectLessons []timetable.Lesson
			subjectLessons, err = s.lessons.Lessons(ctx, subject.ID)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load lessons", "subject_id", subject.ID, "error", err, "error_kind", ErrorKind(err))
				return
			}
			for i := range subjectLessons {
				if subjectLessons[i].Subject == "" {
					subjectLessons[i].Subject = subject.Name
				}
			}
			lessons = append(lessons, subjectLessons...)
		}
	}

	blocks := timetable.MergeDay(student.Availability, params.Day, lessons)
	layout = DayLayout{
		StudentID: student.ID,
		Day:       params.Day,
		Grid:      params.Grid,
		Bubbles:   params.Grid.LayoutDay(blocks, logger),
	}
	return
}

func (s *StudentService) assignIDs(student *profile.Student) {
	if student.ID == "" {
		student.ID = s.idGenerator()
	}
	for i := range student.Subjects {
		if student.Subjects[i].ID == "" {
			student.Subjects[i].ID = s.idGenerator()
		}
	}
	s.assignActivityIDs(&student.Availability)
}

func (s *StudentService) assignActivityIDs(week *timetable.Week) {
	for _, d := range timetable.Days() {
		for i := range week[d] {
			if week[d][i].ID == "" {
				week[d][i].ID = s.idGenerator()
			}
		}
	}
}

func normalizeStudent(in profile.Student) profile.Student {
	out := in.Clone()
	out.ID = strings.TrimSpace(out.ID)
	out.FirstName = strings.TrimSpace(out.FirstName)
	out.LastName = strings.TrimSpace(out.LastName)
	for i := range out.Subjects {
		out.Subjects[i].Name = strings.TrimSpace(out.Subjects[i].Name)
		shared := out.Subjects[i].SharedWith[:0]
		for _, id := range out.Subjects[i].SharedWith {
			id = strings.TrimSpace(id)
			if id == "" || (out.ID != "" && id == out.ID) {
				continue
			}
			shared = append(shared, id)
		}
		out.Subjects[i].SharedWith = shared
	}
	fileDays(&out.Availability)
	return out
}

// fileDays makes every activity's Day agree with the slot it is stored in.
func fileDays(week *timetable.Week) {
	for _, d := range timetable.Days() {
		for i := range week[d] {
			week[d][i].Day = d
		}
	}
}

func validateStudent(student profile.Student) error {
	vErr := &ValidationError{}

	fields, err := validation.Struct(validation.StudentInput{
		FirstName: student.FirstName,
		LastName:  student.LastName,
		Grade:     student.Grade,
	})
	if err != nil {
		return err
	}
	vErr.merge("", fields)

	seen := make(map[string]bool, len(student.Subjects))
	for i, subject := range student.Subjects {
		prefix := fmt.Sprintf("subjects[%d]", i)
		fields, err := validation.Struct(validation.SubjectInput{Name: subject.Name, LessonsPerWeek: subject.LessonsPerWeek})
		if err != nil {
			return err
		}
		vErr.merge(prefix, fields)

		key := profile.SubjectKey(subject.Name)
		if key != "" && seen[key] {
			vErr.add(prefix+".name", "is listed more than once")
		}
		seen[key] = true
	}

	validateWeek(vErr, student.Availability)

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func validateWeek(vErr *ValidationError, week timetable.Week) {
	for _, d := range timetable.Days() {
		for i, a := range week[d] {
			field := fmt.Sprintf("availability.%s[%d]", d, i)
			if _, err := timetable.NewActivity(d, a.Type, a.Start, a.End); err != nil {
				vErr.add(field, err.Error())
			}
		}
	}
}

func mapStudentRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
