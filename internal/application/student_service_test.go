package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

var fixedNow = func() time.Time { return time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC) }

func sampleStudent(t *testing.T) profile.Student {
	t.Helper()
	sport, err := timetable.NewActivity(timetable.Monday, timetable.Sport, timetable.MustClock("14:00"), timetable.MustClock("15:30"))
	if err != nil {
		t.Fatalf("NewActivity: %v", err)
	}
	var week timetable.Week
	week[timetable.Monday] = []timetable.Activity{sport}
	return profile.Student{
		FirstName:    "  Lina ",
		LastName:     "Haddad",
		Grade:        9,
		Subjects:     []profile.Subject{{Name: "Maths", LessonsPerWeek: 2, SharedWith: []string{" ", "student-9"}}},
		Availability: week,
	}
}

func TestStudentService_SaveStudent(t *testing.T) {
	t.Run("creates student and assigns ids", func(t *testing.T) {
		repo := newStudentRepoStub()
		svc := NewStudentService(repo, nil, sequence("id"), fixedNow)

		saved, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: sampleStudent(t)})
		if err != nil {
			t.Fatalf("SaveStudent returned error: %v", err)
		}
		if saved.ID != "id-1" {
			t.Fatalf("expected generated student id, got %q", saved.ID)
		}
		if saved.FirstName != "Lina" {
			t.Fatalf("expected trimmed first name, got %q", saved.FirstName)
		}
		if saved.Subjects[0].ID != "id-2" {
			t.Fatalf("expected generated subject id, got %q", saved.Subjects[0].ID)
		}
		if got := saved.Subjects[0].SharedWith; len(got) != 1 || got[0] != "student-9" {
			t.Fatalf("expected blank share dropped, got %v", got)
		}
		monday := saved.Availability[timetable.Monday]
		if len(monday) != 1 || monday[0].ID != "id-3" || monday[0].Type != timetable.Sport {
			t.Fatalf("unexpected monday availability: %+v", monday)
		}
		if stored := repo.upserted[0]; stored.UserID != "user-1" || !stored.UpdatedAt.Equal(fixedNow()) {
			t.Fatalf("unexpected stored record: %+v", stored)
		}
	})

	t.Run("keeps existing ids on update", func(t *testing.T) {
		repo := newStudentRepoStub()
		svc := NewStudentService(repo, nil, sequence("id"), fixedNow)
		first, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: sampleStudent(t)})
		if err != nil {
			t.Fatalf("SaveStudent returned error: %v", err)
		}

		first.LastName = "Haddad-Smith"
		second, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: first})
		if err != nil {
			t.Fatalf("SaveStudent returned error: %v", err)
		}
		if second.ID != first.ID || second.Subjects[0].ID != first.Subjects[0].ID {
			t.Fatalf("expected ids to be preserved, got %+v", second)
		}
		if second.LastName != "Haddad-Smith" {
			t.Fatalf("expected updated last name, got %q", second.LastName)
		}
		if len(repo.students) != 1 {
			t.Fatalf("expected a single stored student, got %d", len(repo.students))
		}
	})

	t.Run("collects validation errors", func(t *testing.T) {
		repo := newStudentRepoStub()
		svc := NewStudentService(repo, nil, sequence("id"), fixedNow)

		student := sampleStudent(t)
		student.FirstName = "   "
		student.Grade = -1
		student.Subjects = append(student.Subjects, profile.Subject{Name: "maths ", LessonsPerWeek: 1})
		student.Availability[timetable.Friday] = []timetable.Activity{{Type: timetable.Tuition, Day: timetable.Friday,
			Span: timetable.Span{Start: timetable.MustClock("10:00"), End: timetable.MustClock("11:00")}}}

		_, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: student})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"first_name", "grade", "subjects[1].name", "availability.friday[0]"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
		if len(repo.upserted) != 0 {
			t.Fatalf("expected nothing to be stored")
		}
	})

	t.Run("rejects another user's student", func(t *testing.T) {
		repo := newStudentRepoStub()
		repo.students["student-1"] = persistence.Student{ID: "student-1", UserID: "user-2"}
		svc := NewStudentService(repo, nil, sequence("id"), fixedNow)

		student := sampleStudent(t)
		student.ID = "student-1"
		_, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: student})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("maps duplicates to conflict", func(t *testing.T) {
		repo := newStudentRepoStub()
		repo.upsertErr = persistence.ErrDuplicate
		svc := NewStudentService(repo, nil, sequence("id"), fixedNow)

		_, err := svc.SaveStudent(context.Background(), SaveStudentParams{UserID: "user-1", Student: sampleStudent(t)})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("requires a user", func(t *testing.T) {
		svc := NewStudentService(newStudentRepoStub(), nil, sequence("id"), fixedNow)
		_, err := svc.SaveStudent(context.Background(), SaveStudentParams{Student: sampleStudent(t)})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStudentService_ListAndGet(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["a"] = persistence.Student{ID: "a", UserID: "user-1", FirstName: "Amal", LastName: "Zein"}
	repo.students["b"] = persistence.Student{ID: "b", UserID: "user-1", FirstName: "Omar", LastName: "Aziz"}
	repo.students["c"] = persistence.Student{ID: "c", UserID: "user-2", FirstName: "Sara", LastName: "Nour"}
	svc := NewStudentService(repo, nil, nil, nil)

	students, err := svc.ListStudents(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListStudents returned error: %v", err)
	}
	if len(students) != 2 || students[0].ID != "b" || students[1].ID != "a" {
		t.Fatalf("unexpected students: %+v", students)
	}

	if _, err := svc.GetStudent(context.Background(), "user-1", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's student, got %v", err)
	}

	empty, err := svc.ListStudents(context.Background(), "user-3")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v err=%v", empty, err)
	}
}

func TestStudentService_ReplaceAvailability(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["student-1"] = persistence.Student{ID: "student-1", UserID: "user-1", FirstName: "Lina", LastName: "Haddad"}
	svc := NewStudentService(repo, nil, sequence("act"), fixedNow)

	var week timetable.Week
	week[timetable.Sunday] = []timetable.Activity{{
		Type: timetable.Sleep,
		Span: timetable.Span{Start: timetable.MustClock("22:00"), End: timetable.MustClock("06:00")},
	}}

	t.Run("stores the week with ids and corrected days", func(t *testing.T) {
		student, err := svc.ReplaceAvailability(context.Background(), ReplaceAvailabilityParams{UserID: "user-1", StudentID: "student-1", Week: week})
		if err != nil {
			t.Fatalf("ReplaceAvailability returned error: %v", err)
		}
		sunday := student.Availability[timetable.Sunday]
		if len(sunday) != 1 || sunday[0].ID != "act-1" || sunday[0].Day != timetable.Sunday {
			t.Fatalf("unexpected sunday availability: %+v", sunday)
		}
		if repo.replaced[0].Day != int(timetable.Sunday) || repo.replaced[0].StartMinute != 22*60 {
			t.Fatalf("unexpected stored activity: %+v", repo.replaced[0])
		}
		if week[timetable.Sunday][0].ID != "" {
			t.Fatalf("expected caller week to stay untouched")
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.ReplaceAvailability(context.Background(), ReplaceAvailabilityParams{UserID: "user-2", StudentID: "student-1", Week: week})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects invalid activities", func(t *testing.T) {
		var bad timetable.Week
		bad[timetable.Monday] = []timetable.Activity{{Type: timetable.Sport, Span: timetable.Span{Start: -1, End: 30}}}
		_, err := svc.ReplaceAvailability(context.Background(), ReplaceAvailabilityParams{UserID: "user-1", StudentID: "student-1", Week: bad})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["availability.monday[0]"]; !ok {
			t.Fatalf("expected monday error, got %v", vErr.FieldErrors)
		}
	})
}

func TestStudentService_DeleteStudent(t *testing.T) {
	ctx := context.Background()
	repo := newStudentRepoStub()
	repo.students["student-1"] = persistence.Student{
		ID: "student-1", UserID: "user-1",
		Subjects: []persistence.Subject{{ID: "subject-1", Name: "Maths", LessonsPerWeek: 1}},
	}
	cache := NewMemoryTimetableCache(time.Minute, 8, nil)
	cache.Store(ctx, "subject-1", []timetable.RawLesson{{Day: "monday", Start: "16:00", End: "17:00"}})
	tuitions := NewTuitionService(newTuitionRepoStub(nil), cache, nil, nil)
	svc := NewStudentService(repo, tuitions, nil, nil)

	if err := svc.DeleteStudent(ctx, "user-1", "student-1"); err != nil {
		t.Fatalf("DeleteStudent returned error: %v", err)
	}
	if _, ok := repo.students["student-1"]; ok {
		t.Fatalf("expected student to be removed")
	}
	if _, ok := cache.Get(ctx, "subject-1"); ok {
		t.Fatalf("expected subject timetable to be invalidated")
	}

	if err := svc.DeleteStudent(ctx, "user-1", "student-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStudentService_Layout(t *testing.T) {
	ctx := context.Background()
	repo := newStudentRepoStub()
	svc := NewStudentService(repo, nil, sequence("id"), fixedNow)
	saved, err := svc.SaveStudent(ctx, SaveStudentParams{UserID: "user-1", Student: sampleStudent(t)})
	if err != nil {
		t.Fatalf("SaveStudent returned error: %v", err)
	}

	subjectID := saved.Subjects[0].ID
	tuitionRepo := newTuitionRepoStub(map[string]string{subjectID: "Maths"})
	tuitions := NewTuitionService(tuitionRepo, NewMemoryTimetableCache(time.Minute, 8, nil), sequence("tuition"), fixedNow)
	if _, err := tuitions.Schedule(ctx, ScheduleTuitionInput{SubjectID: subjectID, Day: "monday", Start: "16:00", End: "17:00"}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	svc = NewStudentService(repo, tuitions, sequence("id"), fixedNow)

	t.Run("positions availability and lessons", func(t *testing.T) {
		layout, err := svc.Layout(ctx, LayoutParams{UserID: "user-1", StudentID: saved.ID, Day: timetable.Monday, Grid: timetable.DefaultGrid()})
		if err != nil {
			t.Fatalf("Layout returned error: %v", err)
		}
		if len(layout.Bubbles) != 2 {
			t.Fatalf("expected two bubbles, got %+v", layout.Bubbles)
		}
		sport := layout.Bubbles[0]
		if sport.Kind() != timetable.Sport || sport.Top != 540 || sport.Height != 90 || sport.Locked() {
			t.Fatalf("unexpected sport bubble: %+v", sport)
		}
		lesson := layout.Bubbles[1]
		if lesson.Kind() != timetable.Tuition || lesson.Top != 660 || lesson.Height != 60 || !lesson.Locked() {
			t.Fatalf("unexpected lesson bubble: %+v", lesson)
		}
		if got := lesson.Block.(timetable.Lesson).Subject; got != "Maths" {
			t.Fatalf("expected lesson subject, got %q", got)
		}
	})

	t.Run("other days only show their own blocks", func(t *testing.T) {
		layout, err := svc.Layout(ctx, LayoutParams{UserID: "user-1", StudentID: saved.ID, Day: timetable.Tuesday, Grid: timetable.DefaultGrid()})
		if err != nil {
			t.Fatalf("Layout returned error: %v", err)
		}
		if len(layout.Bubbles) != 0 {
			t.Fatalf("expected empty tuesday, got %+v", layout.Bubbles)
		}
	})

	t.Run("rejects invalid grid and day", func(t *testing.T) {
		_, err := svc.Layout(ctx, LayoutParams{UserID: "user-1", StudentID: saved.ID, Day: timetable.Day(9), Grid: timetable.Grid{StartHour: 30}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["day"]; !ok {
			t.Fatalf("expected day error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["grid"]; !ok {
			t.Fatalf("expected grid error, got %v", vErr.FieldErrors)
		}
	})
}
