/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboard frontends

ROUTE GROUPS:
  /api/plans/*          Plan management
  /api/assignments      Plan assignments
  /api/teams            Team split overrides
  /api/transactions     Normalized transaction intake
  /api/audit/runs/*     Audit execution and retrieval
  /api/adjustments/*    Adjustment workflow
  /api/records/*        Per-record current values
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// defaultOrigins covers local dashboard development.
var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
// allowedOrigins overrides the CORS whitelist; nil keeps the local
// development defaults.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		// Assignment and team routes
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
		})
		r.Route("/teams", func(r chi.Router) {
			r.Get("/", h.ListTeams)
			r.Post("/", h.CreateTeam)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.SubmitTransactions)
		})

		// Audit routes
		r.Route("/audit/runs", func(r chi.Router) {
			r.Get("/", h.ListAuditRuns)
			r.Post("/", h.ExecuteAuditRun)
			r.Get("/{id}", h.GetAuditRun)
			r.Get("/{id}/results", h.GetRunResults)
			r.Get("/{id}/variances", h.GetRunVariances)
			r.Get("/{id}/summaries", h.GetRunSummaries)
			r.Get("/{id}/export", h.ExportRun)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", h.ListAdjustments)
			r.Post("/", h.CreateAdjustment)
			r.Get("/{id}", h.GetAdjustment)
			r.Post("/{id}/approve", h.ApproveAdjustment)
			r.Post("/{id}/reject", h.RejectAdjustment)
			r.Post("/{id}/revert", h.RevertAdjustment)
			r.Get("/{id}/log", h.GetAdjustmentLog)
		})

		// Record routes
		r.Route("/records", func(r chi.Router) {
			r.Get("/{id}/current-value", h.GetRecordCurrentValue)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Landing page for anyone poking the root URL
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Commission Audit Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Commission Audit Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/plans">/api/plans</a> - Commission plans</li>
<li><a href="/api/transactions">/api/transactions</a> - Normalized transactions</li>
<li><a href="/api/audit/runs">/api/audit/runs</a> - Audit runs</li>
<li><a href="/api/adjustments">/api/adjustments</a> - Adjustment workflow</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
