package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type studentServiceStub struct {
	saveParams   application.SaveStudentParams
	saveResult   profile.Student
	saveErr      error
	getResult    profile.Student
	getErr       error
	listResult   []profile.Student
	listErr      error
	deleteErr    error
	deleted      []string
	replaceParam application.ReplaceAvailabilityParams
	replaceErr   error
	layoutParams application.LayoutParams
	layout       application.DayLayout
	layoutErr    error
}

func (s *studentServiceStub) SaveStudent(_ context.Context, params application.SaveStudentParams) (profile.Student, error) {
	s.saveParams = params
	return s.saveResult, s.saveErr
}

func (s *studentServiceStub) GetStudent(_ context.Context, _, _ string) (profile.Student, error) {
	return s.getResult, s.getErr
}

func (s *studentServiceStub) ListStudents(_ context.Context, _ string) ([]profile.Student, error) {
	return s.listResult, s.listErr
}

func (s *studentServiceStub) DeleteStudent(_ context.Context, userID, studentID string) error {
	s.deleted = append(s.deleted, userID+"/"+studentID)
	return s.deleteErr
}

func (s *studentServiceStub) ReplaceAvailability(_ context.Context, params application.ReplaceAvailabilityParams) (profile.Student, error) {
	s.replaceParam = params
	return profile.Student{ID: params.StudentID, Availability: params.Week}, s.replaceErr
}

func (s *studentServiceStub) Layout(_ context.Context, params application.LayoutParams) (application.DayLayout, error) {
	s.layoutParams = params
	return s.layout, s.layoutErr
}

type tuitionServiceStub struct {
	input     application.ScheduleTuitionInput
	lesson    timetable.Lesson
	err       error
	lessons   []timetable.RawLesson
	deletedID string
}

func (s *tuitionServiceStub) Schedule(_ context.Context, input application.ScheduleTuitionInput) (timetable.Lesson, error) {
	s.input = input
	return s.lesson, s.err
}

func (s *tuitionServiceStub) Timetable(_ context.Context, _ string) ([]timetable.RawLesson, error) {
	return s.lessons, s.err
}

func (s *tuitionServiceStub) Delete(_ context.Context, id string) error {
	s.deletedID = id
	return s.err
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func newTestRouter(students *studentServiceStub, tuitions *tuitionServiceStub) http.Handler {
	logger := discardLogger()
	cfg := RouterConfig{Health: NewHealthHandler(pingerStub{}, logger)}
	if students != nil {
		cfg.Students = NewStudentHandler(students, timetable.DefaultGrid(), logger)
	}
	if tuitions != nil {
		cfg.Timetables = NewTimetableHandler(tuitions, logger)
	}
	return NewRouter(cfg)
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestStudentHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list returns an empty array when the user has no students", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&studentServiceStub{}, nil), http.MethodGet, "/users/user-1/students", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"students":[]}` {
			t.Fatalf("body = %s", got)
		}
	})

	t.Run("save creates a student and answers 201", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{saveResult: profile.Student{ID: "student-1", FirstName: "Amina"}}
		body := `{"first_name":"Amina","last_name":"Rahman","grade":9,"subjects":[],"availability":{"monday":[{"type":"sport","start":"14:00","end":"15:30"}]}}`
		rec := serve(t, newTestRouter(stub, nil), http.MethodPost, "/users/user-1/students", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
		}
		if stub.saveParams.UserID != "user-1" || stub.saveParams.Student.FirstName != "Amina" {
			t.Fatalf("unexpected params: %+v", stub.saveParams)
		}
		if got := len(stub.saveParams.Student.Availability[timetable.Monday]); got != 1 {
			t.Fatalf("monday activities = %d, want 1", got)
		}
		resp := decodeBody[studentResponse](t, rec)
		if !resp.Success || resp.Student.ID != "student-1" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("save of an existing student answers 200", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{saveResult: profile.Student{ID: "student-1"}}
		rec := serve(t, newTestRouter(stub, nil), http.MethodPost, "/users/user-1/students", `{"id":"student-1","first_name":"A","last_name":"B"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("malformed body is rejected before the service", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{}
		rec := serve(t, newTestRouter(stub, nil), http.MethodPost, "/users/user-1/students", `{"first_name":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if stub.saveParams.UserID != "" {
			t.Fatal("service should not be called")
		}
	})

	t.Run("validation errors answer 422 with field messages", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"first_name": "is required"}}
		stub := &studentServiceStub{saveErr: vErr}
		rec := serve(t, newTestRouter(stub, nil), http.MethodPost, "/users/user-1/students", `{}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		resp := decodeBody[errorResponse](t, rec)
		if resp.Success || resp.Errors["first_name"] != "is required" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("service sentinels map to status codes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			err  error
			want int
		}{
			{name: "not found", err: application.ErrNotFound, want: http.StatusNotFound},
			{name: "conflict", err: application.ErrConflict, want: http.StatusConflict},
			{name: "canceled", err: context.Canceled, want: http.StatusServiceUnavailable},
			{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				stub := &studentServiceStub{getErr: tc.err}
				rec := serve(t, newTestRouter(stub, nil), http.MethodGet, "/users/user-1/students/student-1", "")
				if rec.Code != tc.want {
					t.Fatalf("status = %d, want %d", rec.Code, tc.want)
				}
			})
		}
	})

	t.Run("delete passes path values", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{}
		rec := serve(t, newTestRouter(stub, nil), http.MethodDelete, "/users/user-1/students/student-7", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if len(stub.deleted) != 1 || stub.deleted[0] != "user-1/student-7" {
			t.Fatalf("deleted = %v", stub.deleted)
		}
	})

	t.Run("replace availability decodes the week", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{}
		body := `{"availability":{"friday":[{"type":"school","start":"07:30","end":"14:00"}]}}`
		rec := serve(t, newTestRouter(stub, nil), http.MethodPut, "/users/user-1/students/student-1/availability", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
		}
		friday := stub.replaceParam.Week[timetable.Friday]
		if stub.replaceParam.StudentID != "student-1" || len(friday) != 1 || friday[0].Type != timetable.School {
			t.Fatalf("unexpected params: %+v", stub.replaceParam)
		}
	})

	t.Run("unsupported method is rejected by the mux", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&studentServiceStub{}, nil), http.MethodPatch, "/users/user-1/students/student-1", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want 405", rec.Code)
		}
	})
}

func TestStudentHandler_Layout(t *testing.T) {
	t.Parallel()

	sport, err := timetable.NewActivity(timetable.Monday, timetable.Sport, timetable.MustClock("14:00"), timetable.MustClock("15:30"))
	if err != nil {
		t.Fatalf("NewActivity: %v", err)
	}
	sport.ID = "act-1"
	lesson := timetable.Lesson{
		ID:      "tuition-1",
		Subject: "Maths",
		Day:     timetable.Monday,
		Span:    timetable.Span{Start: timetable.MustClock("16:00"), End: timetable.MustClock("17:00")},
	}
	grid := timetable.Grid{StartHour: 5, PixelsPerMinute: 1}

	t.Run("renders bubbles with query grid overrides", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{layout: application.DayLayout{
			StudentID: "student-1",
			Day:       timetable.Monday,
			Grid:      grid,
			Bubbles: []timetable.Bubble{
				{Block: sport, Segment: timetable.Segment{Top: 540, Height: 90}},
				{Block: lesson, Segment: timetable.Segment{Top: 660, Height: 60}},
			},
		}}
		rec := serve(t, newTestRouter(stub, nil), http.MethodGet, "/users/user-1/students/student-1/layout?day=Monday&grid_start=6&ppm=1.5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
		}
		if stub.layoutParams.Day != timetable.Monday || stub.layoutParams.Grid.StartHour != 6 || stub.layoutParams.Grid.PixelsPerMinute != 1.5 {
			t.Fatalf("unexpected params: %+v", stub.layoutParams)
		}

		resp := decodeBody[layoutDTO](t, rec)
		if resp.Day != "monday" || len(resp.Bubbles) != 2 {
			t.Fatalf("unexpected layout: %+v", resp)
		}
		first, second := resp.Bubbles[0], resp.Bubbles[1]
		if first.ID != "act-1" || first.Kind != "sport" || first.Locked || first.Top != 540 || first.Start != "14:00" {
			t.Fatalf("unexpected activity bubble: %+v", first)
		}
		if second.ID != "tuition-1" || !second.Locked || second.Subject != "Maths" || second.Label != "Maths" || second.End != "17:00" {
			t.Fatalf("unexpected tuition bubble: %+v", second)
		}
	})

	t.Run("uses the handler grid when no overrides are given", func(t *testing.T) {
		t.Parallel()

		stub := &studentServiceStub{}
		rec := serve(t, newTestRouter(stub, nil), http.MethodGet, "/users/user-1/students/student-1/layout?day=tuesday", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if stub.layoutParams.Grid != timetable.DefaultGrid() {
			t.Fatalf("grid = %+v, want default", stub.layoutParams.Grid)
		}
		resp := decodeBody[layoutDTO](t, rec)
		if resp.Bubbles == nil {
			t.Fatal("bubbles should encode as an empty array")
		}
	})

	t.Run("rejects bad query parameters", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name  string
			query string
		}{
			{name: "missing day", query: ""},
			{name: "unknown day", query: "?day=someday"},
			{name: "non numeric grid start", query: "?day=monday&grid_start=five"},
			{name: "non numeric ppm", query: "?day=monday&ppm=x"},
		}
		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				stub := &studentServiceStub{}
				rec := serve(t, newTestRouter(stub, nil), http.MethodGet, "/users/user-1/students/student-1/layout"+tc.query, "")
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400", rec.Code)
				}
				if stub.layoutParams.StudentID != "" {
					t.Fatal("service should not be called")
				}
			})
		}
	})
}

func TestTimetableHandlers(t *testing.T) {
	t.Parallel()

	t.Run("get lists the subject timetable", func(t *testing.T) {
		t.Parallel()

		stub := &tuitionServiceStub{lessons: []timetable.RawLesson{{ID: "t-1", Day: "monday", Start: "16:00", End: "17:00", Subject: "Maths"}}}
		rec := serve(t, newTestRouter(nil, stub), http.MethodGet, "/subjects/subject-1/timetable", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		resp := decodeBody[timetableResponse](t, rec)
		if len(resp.Tuitions) != 1 || resp.Tuitions[0].Subject != "Maths" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("get of an empty timetable encodes an empty array", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(nil, &tuitionServiceStub{}), http.MethodGet, "/subjects/subject-1/timetable", "")
		if got := strings.TrimSpace(rec.Body.String()); got != `{"tuitions":[]}` {
			t.Fatalf("body = %s", got)
		}
	})

	t.Run("schedule answers 201 with the stored tuition", func(t *testing.T) {
		t.Parallel()

		stub := &tuitionServiceStub{lesson: timetable.Lesson{
			ID:        "tuition-1",
			SubjectID: "subject-1",
			Subject:   "Maths",
			Day:       timetable.Friday,
			Span:      timetable.Span{Start: timetable.MustClock("18:30"), End: timetable.MustClock("19:15")},
		}}
		rec := serve(t, newTestRouter(nil, stub), http.MethodPost, "/subjects/subject-1/timetable", `{"day":"friday","start":"18:30","end":"19:15"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
		}
		if stub.input.SubjectID != "subject-1" || stub.input.Day != "friday" || stub.input.Start != "18:30" {
			t.Fatalf("unexpected input: %+v", stub.input)
		}
		resp := decodeBody[tuitionResponse](t, rec)
		if resp.Tuition.Day != "friday" || resp.Tuition.End != "19:15" || resp.Tuition.ID != "tuition-1" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("delete maps not found", func(t *testing.T) {
		t.Parallel()

		stub := &tuitionServiceStub{err: application.ErrNotFound}
		rec := serve(t, newTestRouter(nil, stub), http.MethodDelete, "/tuitions/tuition-9", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if stub.deletedID != "tuition-9" {
			t.Fatalf("deleted = %q", stub.deletedID)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "database answers", want: http.StatusOK},
		{name: "database down", err: errors.New("closed"), want: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router := NewRouter(RouterConfig{Health: NewHealthHandler(pingerStub{err: tc.err}, discardLogger())})
			rec := serve(t, router, http.MethodGet, "/healthz", "")
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
