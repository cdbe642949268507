package routes

import (
	"net/http"

	"github.com/zatekoja/docenricher/internal/api/handlers"
	"github.com/zatekoja/docenricher/internal/api/middleware"
	"github.com/zatekoja/docenricher/internal/infrastructure/observability"
)

// Router holds the admin route handlers
type Router struct {
	mux *http.ServeMux

	healthHandler *handlers.HealthHandler
	runsHandler   *handlers.RunsHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router. runsHandler may be nil when no ledger is
// configured.
func NewRouter(
	healthHandler *handlers.HealthHandler,
	runsHandler *handlers.RunsHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:           http.NewServeMux(),
		healthHandler: healthHandler,
		runsHandler:   runsHandler,
		metrics:       metrics,
	}
}

// SetupRoutes configures all admin routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)

	if r.runsHandler != nil {
		r.mux.HandleFunc("GET /api/runs", r.runsHandler.ListRuns)
	}

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	return handler
}
