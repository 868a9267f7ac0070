package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/timetable"
)

type tuitionService interface {
	Schedule(ctx context.Context, input application.ScheduleTuitionInput) (timetable.Lesson, error)
	Timetable(ctx context.Context, subjectID string) ([]timetable.RawLesson, error)
	Delete(ctx context.Context, tuitionID string) error
}

// TimetableHandler serves subject timetables and tuition scheduling.
type TimetableHandler struct {
	service   tuitionService
	responder responder
	logger    *slog.Logger
}

func NewTimetableHandler(service tuitionService, logger *slog.Logger) *TimetableHandler {
	base := defaultLogger(logger)
	return &TimetableHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TimetableHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TimetableHandler", operation, attrs...)
}

func (h *TimetableHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subjectID")
	logger := h.log(r.Context(), "Get", "subject_id", subjectID)

	lessons, err := h.service.Timetable(r.Context(), subjectID)
	if err != nil {
		logger.WarnContext(r.Context(), "timetable lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if lessons == nil {
		lessons = []timetable.RawLesson{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timetableResponse{Tuitions: lessons})
}

func (h *TimetableHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subjectID")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Schedule", "subject_id", subjectID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode tuition", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Schedule", "subject_id", subjectID)

	lesson, err := h.service.Schedule(r.Context(), application.ScheduleTuitionInput{
		SubjectID: subjectID,
		Day:       req.Day,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "tuition scheduling failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("tuition_id", lesson.ID).InfoContext(r.Context(), "tuition scheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, tuitionResponse{
		Success: true,
		Tuition: timetable.RawLesson{
			ID:        lesson.ID,
			SubjectID: lesson.SubjectID,
			Day:       lesson.Day.String(),
			Start:     lesson.Start.String(),
			End:       lesson.End.String(),
			Subject:   lesson.Subject,
		},
	})
}

func (h *TimetableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tuitionID := r.PathValue("tuitionID")
	logger := h.log(r.Context(), "Delete", "tuition_id", tuitionID)

	if err := h.service.Delete(r.Context(), tuitionID); err != nil {
		logger.ErrorContext(r.Context(), "tuition delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "tuition deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

type scheduleRequest struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type timetableResponse struct {
	Tuitions []timetable.RawLesson `json:"tuitions"`
}

type tuitionResponse struct {
	Success bool                `json:"success"`
	Tuition timetable.RawLesson `json:"tuition"`
}
