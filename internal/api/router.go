package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fedquery/internal/middleware"
)

// RouterConfig selects the middleware applied around the handlers.
type RouterConfig struct {
	// JWTSecret enables bearer auth on /v1 when non-empty.
	JWTSecret string
	// RateLimitRPS enables per-client rate limiting when > 0.
	RateLimitRPS   float64
	RateLimitBurst int
	// CORSAllowedOrigins defaults to a wildcard when empty.
	CORSAllowedOrigins []string
}

// NewRouter assembles the chi router: request IDs, logging, panic recovery,
// CORS, optional rate limiting, and the /v1 subtree behind optional bearer
// auth. /healthz stays public.
func NewRouter(h *Handler, cfg RouterConfig) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}

	var validator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		validator = v
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(middleware.RequireAuth(validator))
		}
		r.Post("/answer", h.handleAnswer)
		r.Get("/catalog", h.handleCatalog)
		r.Get("/history", h.handleHistory)
	})

	return r, nil
}
