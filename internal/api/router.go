package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"batterycare/internal/observability"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/v1/app/state", h.AppState)

	r.Route("/v1/batteries", func(r chi.Router) {
		r.Get("/", h.listBatteries())
		r.Put("/", h.saveBattery())
		r.Delete("/{id}", h.deleteBattery())
	})
	r.Route("/v1/notes", func(r chi.Router) {
		r.Get("/", h.listNotes())
		r.Put("/", h.saveNote())
		r.Delete("/{id}", h.deleteNote())
	})
	r.Route("/v1/reminders", func(r chi.Router) {
		r.Get("/", h.listReminders())
		r.Put("/", h.saveReminder())
		r.Delete("/{id}", h.deleteReminder())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
