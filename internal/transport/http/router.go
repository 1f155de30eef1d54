package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

type RouterConfig struct {
	Service SchedulingService
	DB      *bun.DB
	Logger  *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log.With(slog.String("component", "http"))))

	r.Get("/health/live", livenessHandler())
	r.Get("/health/ready", readinessHandler(cfg.DB))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/{id}/reassign", reassignHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Service))
		r.Post("/{id}/status", changeStatusHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelHandler(cfg.Service))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Service))
		r.Get("/{id}/history", historyHandler(cfg.Service))
	})

	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))
	r.Get("/availability", availabilityHandler(cfg.Service))

	return r
}

func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readinessHandler(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
