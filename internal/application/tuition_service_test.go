package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/tuition-scheduler/internal/timetable"
)

func TestTuitionService_Schedule(t *testing.T) {
	ctx := context.Background()

	t.Run("stores lesson and invalidates cache", func(t *testing.T) {
		repo := newTuitionRepoStub(map[string]string{"subject-1": "Physics"})
		cache := NewMemoryTimetableCache(time.Minute, 8, nil)
		cache.Store(ctx, "subject-1", nil)
		svc := NewTuitionService(repo, cache, sequence("tuition"), fixedNow)

		lesson, err := svc.Schedule(ctx, ScheduleTuitionInput{SubjectID: "subject-1", Day: "Friday", Start: "18:30", End: "19:15"})
		if err != nil {
			t.Fatalf("Schedule returned error: %v", err)
		}
		if lesson.ID != "tuition-1" || lesson.Day != timetable.Friday || lesson.Duration() != 45 {
			t.Fatalf("unexpected lesson: %+v", lesson)
		}
		if stored := repo.tuitions[0]; stored.StartMinute != 18*60+30 || !stored.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("unexpected stored tuition: %+v", stored)
		}
		if _, ok := cache.Get(ctx, "subject-1"); ok {
			t.Fatalf("expected cache entry to be invalidated")
		}
	})

	t.Run("validates input", func(t *testing.T) {
		svc := NewTuitionService(newTuitionRepoStub(nil), nil, nil, nil)
		_, err := svc.Schedule(ctx, ScheduleTuitionInput{SubjectID: " ", Day: "someday", Start: "25:00", End: "10:00"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"subject_id", "day", "start"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
		if _, ok := vErr.FieldErrors["end"]; ok {
			t.Fatalf("did not expect end error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		svc := NewTuitionService(newTuitionRepoStub(map[string]string{}), nil, sequence("tuition"), nil)
		_, err := svc.Schedule(ctx, ScheduleTuitionInput{SubjectID: "missing", Day: "monday", Start: "10:00", End: "11:00"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTuitionService_TimetableReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := newTuitionRepoStub(map[string]string{"subject-1": "Physics"})
	svc := NewTuitionService(repo, NewMemoryTimetableCache(time.Minute, 8, nil), sequence("tuition"), fixedNow)
	if _, err := svc.Schedule(ctx, ScheduleTuitionInput{SubjectID: "subject-1", Day: "saturday", Start: "09:00", End: "10:00"}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	first, err := svc.Timetable(ctx, "subject-1")
	if err != nil {
		t.Fatalf("Timetable returned error: %v", err)
	}
	want := timetable.RawLesson{ID: "tuition-1", SubjectID: "subject-1", Day: "saturday", Start: "09:00", End: "10:00", Subject: "Physics"}
	if len(first) != 1 || first[0] != want {
		t.Fatalf("unexpected timetable: %+v", first)
	}

	if _, err := svc.Timetable(ctx, "subject-1"); err != nil {
		t.Fatalf("Timetable returned error: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected second read to hit the cache, repository called %d times", repo.listCalls)
	}

	if err := svc.Delete(ctx, "tuition-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	after, err := svc.Timetable(ctx, "subject-1")
	if err != nil {
		t.Fatalf("Timetable returned error: %v", err)
	}
	if len(after) != 0 || repo.listCalls != 2 {
		t.Fatalf("expected fresh empty timetable after delete, got %v (calls %d)", after, repo.listCalls)
	}
}

func TestTuitionService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := NewTuitionService(newTuitionRepoStub(map[string]string{}), nil, nil, nil)

	if _, err := svc.Timetable(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subject, got %v", err)
	}
	if err := svc.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown tuition, got %v", err)
	}
}

func TestTuitionService_LessonsSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryTimetableCache(time.Minute, 8, nil)
	cache.Store(ctx, "subject-1", []timetable.RawLesson{
		{Day: "monday", Start: "16:00", End: "17:00", Subject: "Maths"},
		{Day: "funday", Start: "16:00", End: "17:00", Subject: "Maths"},
	})
	svc := NewTuitionService(newTuitionRepoStub(nil), cache, nil, nil)

	lessons, err := svc.Lessons(ctx, "subject-1")
	if err != nil {
		t.Fatalf("Lessons returned error: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Day != timetable.Monday {
		t.Fatalf("expected the malformed entry to be skipped, got %+v", lessons)
	}
}
