package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RecoveryMiddleware)

	if h.metricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Route("/tenants/{tenant_id}", func(r chi.Router) {
				r.Use(TenantMiddleware)
				r.Post("/restore", h.Restore)
				r.Get("/reconcile", h.Reconcile)
				r.Get("/outbox/backlog", h.Backlog)
				r.Post("/outbox/drain", h.Drain)
				r.Get("/records/{kind}/{id}", h.GetRecord)
				r.Put("/records/{kind}/{id}", h.PutRecord)
			})
		})
	})

	return r
}
