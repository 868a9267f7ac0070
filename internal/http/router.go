package http

import (
	"net/http"
)

type RouterConfig struct {
	Students   *StudentHandler
	Timetables *TimetableHandler
	Health     *HealthHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
	}

	if cfg.Students != nil {
		mux.HandleFunc("GET /users/{userID}/students", cfg.Students.List)
		mux.HandleFunc("POST /users/{userID}/students", cfg.Students.Save)
		mux.HandleFunc("GET /users/{userID}/students/{studentID}", cfg.Students.Get)
		mux.HandleFunc("DELETE /users/{userID}/students/{studentID}", cfg.Students.Delete)
		mux.HandleFunc("PUT /users/{userID}/students/{studentID}/availability", cfg.Students.ReplaceAvailability)
		mux.HandleFunc("GET /users/{userID}/students/{studentID}/layout", cfg.Students.Layout)
	}

	if cfg.Timetables != nil {
		mux.HandleFunc("GET /subjects/{subjectID}/timetable", cfg.Timetables.Get)
		mux.HandleFunc("POST /subjects/{subjectID}/timetable", cfg.Timetables.Schedule)
		mux.HandleFunc("DELETE /tuitions/{tuitionID}", cfg.Timetables.Delete)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
