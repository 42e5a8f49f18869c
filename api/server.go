/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the caseworker frontend

ROUTE GROUPS:
  /api/health               Liveness
  /api/cases/*              Cases and opening revisions
  /api/revisions/*          Revision workflow
  /api/reconciliation/*     Side effect reconciliation
  /api/scenarios/*          Demo scenarios
  /metrics                  Prometheus metrics

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the parts of the router that vary per deployment.
type RouterOptions struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer // nil disables /metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Post("/", h.CreateCase)
			r.Get("/{id}", h.GetCase)
			r.Get("/{id}/revisions", h.ListCaseRevisions)
			r.Post("/{id}/revisions", h.CreateRevision)
		})

		r.Route("/revisions", func(r chi.Router) {
			r.Get("/{id}", h.GetRevision)
			r.Put("/{id}", h.UpdateRevision)
			r.Post("/{id}/calculate", h.Calculate)
			r.Post("/{id}/simulate", h.Simulate)
			r.Post("/{id}/advance-notice", h.AdvanceNotice)
			r.Post("/{id}/advance-notice/resolution", h.ResolveAdvanceNotice)
			r.Post("/{id}/letter-draft", h.LetterDraft)
			r.Post("/{id}/send-to-attestation", h.SendToAttestation)
			r.Post("/{id}/attest", h.Attest)
			r.Post("/{id}/execute", h.Execute)
			r.Post("/{id}/terminate", h.Terminate)
			r.Post("/{id}/complete-side-effects", h.CompleteSideEffects)
			r.Get("/{id}/history", h.History)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/incomplete", h.ListIncomplete)
			r.Post("/run", h.RunReconciliation)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
