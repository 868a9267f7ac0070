package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

type studentService interface {
	SaveStudent(ctx context.Context, params application.SaveStudentParams) (profile.Student, error)
	GetStudent(ctx context.Context, userID, studentID string) (profile.Student, error)
	ListStudents(ctx context.Context, userID string) ([]profile.Student, error)
	DeleteStudent(ctx context.Context, userID, studentID string) error
	ReplaceAvailability(ctx context.Context, params application.ReplaceAvailabilityParams) (profile.Student, error)
	Layout(ctx context.Context, params application.LayoutParams) (application.DayLayout, error)
}

// StudentHandler serves the students of a user and their availability layouts.
type StudentHandler struct {
	service   studentService
	grid      timetable.Grid
	responder responder
	logger    *slog.Logger
}

// NewStudentHandler builds the handler. grid supplies the layout defaults when the
// request omits grid_start or ppm.
func NewStudentHandler(service studentService, grid timetable.Grid, logger *slog.Logger) *StudentHandler {
	base := defaultLogger(logger)
	if grid.Validate() != nil {
		grid = timetable.DefaultGrid()
	}
	return &StudentHandler{service: service, grid: grid, responder: newResponder(base), logger: base}
}

func (h *StudentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "StudentHandler", operation, attrs...)
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	logger := h.log(r.Context(), "List", "user_id", userID)

	students, err := h.service.ListStudents(r.Context(), userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "student listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if students == nil {
		students = []profile.Student{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, studentListResponse{Students: students})
}

func (h *StudentHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var student profile.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		h.log(r.Context(), "Save", "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode student", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Save", "user_id", userID, "student_id", student.ID)
	creating := strings.TrimSpace(student.ID) == ""

	saved, err := h.service.SaveStudent(r.Context(), application.SaveStudentParams{UserID: userID, Student: student})
	if err != nil {
		logger.ErrorContext(r.Context(), "student save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if creating {
		status = http.StatusCreated
	}
	logger.With("student_id", saved.ID).InfoContext(r.Context(), "student saved")
	h.responder.writeJSON(r.Context(), w, status, studentResponse{Success: true, Student: saved})
}

func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, studentID := r.PathValue("userID"), r.PathValue("studentID")
	logger := h.log(r.Context(), "Get", "user_id", userID, "student_id", studentID)

	student, err := h.service.GetStudent(r.Context(), userID, studentID)
	if err != nil {
		logger.WarnContext(r.Context(), "student lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, studentResponse{Success: true, Student: student})
}

func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, studentID := r.PathValue("userID"), r.PathValue("studentID")
	logger := h.log(r.Context(), "Delete", "user_id", userID, "student_id", studentID)

	if err := h.service.DeleteStudent(r.Context(), userID, studentID); err != nil {
		logger.ErrorContext(r.Context(), "student delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "student deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

func (h *StudentHandler) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	userID, studentID := r.PathValue("userID"), r.PathValue("studentID")

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "ReplaceAvailability", "user_id", userID, "student_id", studentID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode availability", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "ReplaceAvailability", "user_id", userID, "student_id", studentID)

	student, err := h.service.ReplaceAvailability(r.Context(), application.ReplaceAvailabilityParams{
		UserID:    userID,
		StudentID: studentID,
		Week:      req.Availability,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "availability update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "availability updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, studentResponse{Success: true, Student: student})
}

// Layout serves GET .../layout?day=monday&grid_start=5&ppm=1.
func (h *StudentHandler) Layout(w http.ResponseWriter, r *http.Request) {
	userID, studentID := r.PathValue("userID"), r.PathValue("studentID")
	query := r.URL.Query()

	dayName := strings.TrimSpace(query.Get("day"))
	if dayName == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingDay)
		return
	}
	day, err := timetable.ParseDay(dayName)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	grid := h.grid
	if v := query.Get("grid_start"); v != "" {
		if grid.StartHour, err = strconv.Atoi(v); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGrid)
			return
		}
	}
	if v := query.Get("ppm"); v != "" {
		if grid.PixelsPerMinute, err = strconv.ParseFloat(v, 64); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGrid)
			return
		}
	}

	logger := h.log(r.Context(), "Layout", "user_id", userID, "student_id", studentID, "day", day.String())

	layout, err := h.service.Layout(r.Context(), application.LayoutParams{
		UserID:    userID,
		StudentID: studentID,
		Day:       day,
		Grid:      grid,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "layout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLayoutDTO(layout))
}

type availabilityRequest struct {
	Availability timetable.Week `json:"availability"`
}

type studentResponse struct {
	Success bool            `json:"success"`
	Student profile.Student `json:"student"`
}

type studentListResponse struct {
	Students []profile.Student `json:"students"`
}

type layoutDTO struct {
	StudentID string      `json:"student_id"`
	Day       string      `json:"day"`
	Grid      gridDTO     `json:"grid"`
	Bubbles   []bubbleDTO `json:"bubbles"`
}

type gridDTO struct {
	StartHour       int     `json:"start_hour"`
	PixelsPerMinute float64 `json:"pixels_per_minute"`
	Height          float64 `json:"height"`
}

type bubbleDTO struct {
	ID        string  `json:"id,omitempty"`
	Kind      string  `json:"kind"`
	Label     string  `json:"label"`
	Subject   string  `json:"subject,omitempty"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Top       float64 `json:"top"`
	Height    float64 `json:"height"`
	Continued bool    `json:"continued"`
	Locked    bool    `json:"locked"`
}

func toLayoutDTO(layout application.DayLayout) layoutDTO {
	dto := layoutDTO{
		StudentID: layout.StudentID,
		Day:       layout.Day.String(),
		Grid: gridDTO{
			StartHour:       layout.Grid.StartHour,
			PixelsPerMinute: layout.Grid.PixelsPerMinute,
			Height:          layout.Grid.Height(),
		},
		Bubbles: make([]bubbleDTO, 0, len(layout.Bubbles)),
	}
	for _, b := range layout.Bubbles {
		span := b.Block.Interval()
		bubble := bubbleDTO{
			Kind:      string(b.Kind()),
			Label:     b.Kind().Label(),
			Start:     span.Start.String(),
			End:       span.End.String(),
			Top:       b.Top,
			Height:    b.Height,
			Continued: b.Continued,
			Locked:    b.Locked(),
		}
		switch block := b.Block.(type) {
		case timetable.Activity:
			bubble.ID = block.ID
		case timetable.Lesson:
			bubble.ID = block.ID
			bubble.Subject = block.Subject
			bubble.Label = block.Subject
		}
		dto.Bubbles = append(dto.Bubbles, bubble)
	}
	return dto
}
