package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"upmon/internal/config"
	"upmon/internal/storage"
)

// NewRouter sets up the operational HTTP surface and returns the handler.
func NewRouter(cfg config.Config, store storage.Store) http.Handler {
	r := chi.NewRouter()

	health := NewHealthHandler(store)
	handlers := NewHandlers(store)

	// Public routes
	r.Get("/healthz", health.ServeHTTP)

	// Protected read-only routes
	r.Group(func(r chi.Router) {
		r.Use(BasicAuthMiddleware(cfg.Ops))

		r.Get("/api/monitors/{id}", handlers.MonitorDetail)
		r.Get("/api/monitors/{id}/stats", handlers.MonitorStats)
		r.Get("/api/monitors/{id}/checks", handlers.MonitorChecks)
	})

	return r
}
