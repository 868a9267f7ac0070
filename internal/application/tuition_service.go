package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/timetable"
	"github.com/example/tuition-scheduler/internal/validation"
)

// TuitionService schedules lessons for subjects and serves subject timetables.
type TuitionService struct {
	tuitions    persistence.TuitionRepository
	cache       TimetableCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTuitionService constructs a tuition service with the provided dependencies.
func NewTuitionService(tuitions persistence.TuitionRepository, cache TimetableCache, idGenerator func() string, now func() time.Time) *TuitionService {
	return NewTuitionServiceWithLogger(tuitions, cache, idGenerator, now, nil)
}

// NewTuitionServiceWithLogger constructs a tuition service with a specified logger. A nil
// cache disables caching.
func NewTuitionServiceWithLogger(tuitions persistence.TuitionRepository, cache TimetableCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TuitionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TuitionService{tuitions: tuitions, cache: cache, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *TuitionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TuitionService", operation, attrs...)
}

// Schedule validates input and stores a new lesson for the subject.
func (s *TuitionService) Schedule(ctx context.Context, input ScheduleTuitionInput) (lesson timetable.Lesson, err error) {
	if s == nil {
		err = fmt.Errorf("TuitionService is nil")
		return
	}
	if s.tuitions == nil {
		err = fmt.Errorf("tuition repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Schedule", "subject_id", input.SubjectID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to schedule tuition", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("tuition_id", lesson.ID).InfoContext(ctx, "tuition scheduled")
	}()

	var (
		day  timetable.Day
		span timetable.Span
	)
	day, span, err = validateTuitionInput(input)
	if err != nil {
		return
	}

	record := persistence.Tuition{
		ID:          s.idGenerator(),
		SubjectID:   strings.TrimSpace(input.SubjectID),
		Day:         int(day),
		StartMinute: span.Start.Minutes(),
		EndMinute:   span.End.Minutes(),
		CreatedAt:   s.now(),
	}
	if err = s.tuitions.CreateTuition(ctx, record); err != nil {
		err = mapTuitionRepoError(err)
		return
	}
	s.invalidate(ctx, record.SubjectID)

	lesson = timetable.Lesson{ID: record.ID, SubjectID: record.SubjectID, Day: day, Span: span}
	return
}

// Timetable returns the subject's lessons in wire form, reading through the cache.
func (s *TuitionService) Timetable(ctx context.Context, subjectID string) (lessons []timetable.RawLesson, err error) {
	if s == nil {
		err = fmt.Errorf("TuitionService is nil")
		return
	}
	if s.tuitions == nil {
		return []timetable.RawLesson{}, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, subjectID); ok {
			return cached, nil
		}
	}

	logger := s.loggerWith(ctx, "Timetable", "subject_id", subjectID)

	var stored []persistence.Tuition
	stored, err = s.tuitions.ListTuitionsForSubject(ctx, subjectID)
	if err != nil {
		err = mapTuitionRepoError(err)
		logger.ErrorContext(ctx, "failed to load timetable", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	lessons = make([]timetable.RawLesson, 0, len(stored))
	for _, t := range stored {
		lessons = append(lessons, toRawLesson(t))
	}
	if s.cache != nil {
		s.cache.Store(ctx, subjectID, lessons)
	}
	logger.DebugContext(ctx, "timetable loaded", "lesson_count", len(lessons))
	return lessons, nil
}

// Lessons returns the subject's lessons decoded for layout. Malformed entries are skipped.
func (s *TuitionService) Lessons(ctx context.Context, subjectID string) ([]timetable.Lesson, error) {
	raw, err := s.Timetable(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	lessons, _ := timetable.NormalizeTimetable(raw, s.loggerWith(ctx, "Lessons", "subject_id", subjectID))
	return lessons, nil
}

// Delete removes a scheduled lesson.
func (s *TuitionService) Delete(ctx context.Context, tuitionID string) error {
	if s == nil {
		return fmt.Errorf("TuitionService is nil")
	}
	if s.tuitions == nil {
		return fmt.Errorf("tuition repository not configured")
	}

	logger := s.loggerWith(ctx, "Delete", "tuition_id", tuitionID)

	subjectID, err := s.tuitions.SubjectOfTuition(ctx, tuitionID)
	if err == nil {
		err = s.tuitions.DeleteTuition(ctx, tuitionID)
	}
	if err != nil {
		err = mapTuitionRepoError(err)
		logger.ErrorContext(ctx, "failed to delete tuition", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.invalidate(ctx, subjectID)

	logger.InfoContext(ctx, "tuition deleted", "subject_id", subjectID)
	return nil
}

// InvalidateSubjects drops cached timetables, used when subjects are removed with a student.
func (s *TuitionService) InvalidateSubjects(ctx context.Context, subjectIDs ...string) {
	if s == nil {
		return
	}
	for _, id := range subjectIDs {
		s.invalidate(ctx, id)
	}
}

func (s *TuitionService) invalidate(ctx context.Context, subjectID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, subjectID)
	}
}

func validateTuitionInput(input ScheduleTuitionInput) (timetable.Day, timetable.Span, error) {
	vErr := &ValidationError{}
	fields, err := validation.Struct(input)
	if err != nil {
		return 0, timetable.Span{}, err
	}
	vErr.merge("", fields)

	day, dayErr := timetable.ParseDay(input.Day)
	if dayErr != nil {
		vErr.add("day", "must be a day of the week")
	}
	start, startErr := timetable.ParseClock(input.Start)
	if startErr != nil {
		vErr.add("start", "must be a time in HH:MM format")
	}
	end, endErr := timetable.ParseClock(input.End)
	if endErr != nil {
		vErr.add("end", "must be a time in HH:MM format")
	}
	if vErr.HasErrors() {
		return 0, timetable.Span{}, vErr
	}
	return day, timetable.Span{Start: start, End: end}, nil
}

func mapTuitionRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		// The only foreign key is the subject.
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrConflict
	default:
		return err
	}
}
