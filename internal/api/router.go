package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/handlers"
)

// Deps carries everything the router wires together. Nil RedisClient
// disables rate limiting.
type Deps struct {
	Logger      zerolog.Logger
	Handler     *handlers.Handler
	WSHandler   http.Handler
	Auth        *middleware.AuthMiddleware
	RedisClient *redis.Client
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(32 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(d.RedisClient, d.Logger)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := d.Handler

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.RequireAuth)

		r.Post("/rooms", h.CreateRoom)
		r.Get("/rooms", h.ListRooms)
		r.Get("/rooms/{id}", h.GetRoom)
		r.Post("/rooms/{id}/join", h.JoinRoom)
		r.Get("/rooms/{id}/messages", h.ListMessages)
		r.Post("/rooms/{id}/messages", h.SendMessage)
		r.Patch("/messages/{id}", h.EditMessage)
		r.Delete("/messages/{id}", h.DeleteMessage)

		r.Handle("/ws", d.WSHandler)
	})

	return r
}
