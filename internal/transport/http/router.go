package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/middleware/auth"
)

// NewRouter wires the trigger API. Job routes are scheduler-facing and sit
// behind bearer-token auth; health and metrics stay open for probes.
func NewRouter(h *Handler, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier, h.logger))
		r.Post("/import", h.handleImport)
		r.Post("/export/new", h.handleExportNew)
		r.Post("/export/amend", h.handleExportAmend)
	})

	return r
}
