package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/znz-systems/coldpipe/internal/auth"
	"github.com/znz-systems/coldpipe/internal/ratelimit"
	"github.com/znz-systems/coldpipe/internal/web/handlers"
	"github.com/znz-systems/coldpipe/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	ContactsHandler *handlers.ContactsHandler
	RunsHandler     *handlers.RunsHandler
	HealthHandler   *handlers.HealthHandler
	Metrics         http.Handler
	AuthService     *auth.Service
	Limiter         *ratelimit.Limiter
	AllowedOrigins  []string
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)

	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(middleware.RateLimit(deps.Limiter, middleware.ByIP))
		r.Use(middleware.RequireToken(deps.AuthService))

		r.Post("/contacts/queue", deps.ContactsHandler.HandleQueue)
		r.Get("/runs/{id}", deps.RunsHandler.HandleGetRun)
	})

	return r
}
