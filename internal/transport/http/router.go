// Package httptransport is the thin HTTP layer. Handlers delegate to
// domain services so transport concerns stay isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lethe/internal/platform/middleware"
)

// NewRouter wires the public endpoints. The admin surface sits behind the
// auth middleware; health and metrics stay open for probes and scrapers.
func NewRouter(
	deletion *DeletionHandler,
	health *HealthHandler,
	validator middleware.TokenValidator,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", health.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		deletion.Register(r)
	})
	return r
}
