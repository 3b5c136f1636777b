/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the settings frontend

ROUTE GROUPS:
  /api/drafts/*      Reconciled draft list, overrides, edits
  /api/generate      Batch generation
  /api/invoices      Generated invoice history
  /api/rulesets/*    Ruleset documents
  /api/adhoc/*       Ad-hoc invoices
  /api/extra         Extra-income items
  /api/company       Company profile document

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Draft routes
		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", h.ListDrafts)
			r.Patch("/{id}", h.EditDraft)
			r.Put("/{id}/override", h.SetOverride)
			r.Delete("/{id}/override", h.ClearOverride)
		})

		// Generation routes
		r.Post("/generate", h.Generate)
		r.Get("/invoices", h.ListInvoices)

		// Ruleset routes
		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", h.ListRulesets)
			r.Post("/", h.UpsertRuleset)
			r.Delete("/{id}", h.DeleteRuleset)
		})

		// Ad-hoc invoice routes
		r.Route("/adhoc", func(r chi.Router) {
			r.Get("/", h.ListAdhoc)
			r.Post("/", h.CreateAdhoc)
			r.Delete("/{id}", h.DeleteAdhoc)
		})

		// Extra income and company profile
		r.Put("/extra", h.SetExtra)
		r.Get("/company", h.GetCompany)
		r.Put("/company", h.PutCompany)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
