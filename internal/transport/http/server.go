package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	JWTSecret          string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

// NewRouter wires the engine's external HTTP surface. Availability is
// read-only and unauthenticated; every booking mutation and listing sits
// behind the identity collaborator's bearer token.
func NewRouter(cfg RouterConfig, availability *AvailabilityHandler, bookings *BookingsHandler, log *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/resources/{id}/availability", availability.Get)

	r.Route("/bookings", func(r chi.Router) {
		r.Use(RequireAuth(cfg.JWTSecret))
		r.Post("/", bookings.Create)
		r.Get("/", bookings.List)
		r.Get("/me", bookings.ListMine)
		r.Patch("/{id}/approve", bookings.Approve)
		r.Patch("/{id}/deny", bookings.Deny)
		r.Patch("/{id}/cancel", bookings.Cancel)
		r.Patch("/{id}/check-in", bookings.CheckIn)
		r.Patch("/{id}/complete", bookings.Complete)
	})

	return r
}
