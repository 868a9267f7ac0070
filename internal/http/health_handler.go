package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the database answers.
type HealthHandler struct {
	db        pinger
	timeout   time.Duration
	responder responder
}

func NewHealthHandler(db pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second, responder: newResponder(defaultLogger(logger))}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
