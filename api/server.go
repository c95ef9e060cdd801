/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Identity:   Resolves the authenticated user for write routes

IDENTITY:
  Authentication itself is an external collaborator. The only contract
  the core consumes is an opaque user identity string, delivered here
  via the X-User-Id header (set by the auth proxy). Requests without it
  are rejected with 401 on routes that write events.

ROUTE GROUPS:
  /api/campaigns/*    Campaign projection reads and event appends
  /api/imports/*      Reconciliation preview and apply
  /api/scenarios/*    Demo scenarios
  /api/health         Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// userIDKey is the context key for the authenticated identity.
type contextKey string

const userIDKey contextKey = "userID"

// UserID returns the authenticated identity for a request, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RequireIdentity rejects requests without an X-User-Id header. The
// header value is opaque to the core; it only ends up on appended
// events as UserID.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if userID == "" {
			respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing X-User-Id header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id"},
		AllowCredentials: true,
	}))

	r.Get("/api/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireIdentity)

		// Campaign routes
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/search", h.SearchCampaigns)
			r.Get("/recent", h.RecentCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Get("/{id}/events", h.GetCampaignEvents)
			r.Post("/{id}/events", h.AppendEvent)
			r.Post("/{id}/rebuild", h.RebuildProjection)
		})

		// Bulk import routes
		r.Route("/imports", func(r chi.Router) {
			r.Post("/preview", h.PreviewImport)
			r.Post("/apply", h.ApplyImport)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
