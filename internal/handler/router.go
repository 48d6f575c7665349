package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/metrics"
	"github.com/prn-tf/meridian-users/internal/middleware"
)

// Router assembles the HTTP API from handlers and middleware.
type Router struct {
	authHandler *AuthHandler
	userHandler *UserHandler
	prefHandler *PreferenceHandler
	health      *HealthHandler
	gateway     auth.GatewayConfig
	verifier    auth.Verifier
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.Collector
	logger      zerolog.Logger
}

// RouterConfig contains the router's dependencies.
type RouterConfig struct {
	AuthHandler       *AuthHandler
	UserHandler       *UserHandler
	PreferenceHandler *PreferenceHandler
	HealthHandler     *HealthHandler
	Gateway           auth.GatewayConfig
	Verifier          auth.Verifier
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	Logger            zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		authHandler: config.AuthHandler,
		userHandler: config.UserHandler,
		prefHandler: config.PreferenceHandler,
		health:      config.HealthHandler,
		gateway:     config.Gateway,
		verifier:    config.Verifier,
		rateLimiter: config.RateLimiter,
		metrics:     config.Metrics,
		logger:      config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
//
// Middleware order matters: the gateway filter runs before any
// credential handling so untrusted traffic is rejected first, the
// identity builder runs after the bearer verifier so it can see the
// verified principal, and the rate limiter runs after the identity
// builder so authenticated clients are keyed by user rather than IP.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.RequestLogger(rt.logger, rt.metrics))
	r.Use(auth.GatewayTrust(rt.gateway, rt.logger))
	r.Use(auth.BearerAuth(rt.verifier, rt.metrics, rt.logger))
	r.Use(auth.IdentityBuilder(rt.logger))
	if rt.rateLimiter != nil {
		r.Use(rt.rateLimiter.Middleware())
	}

	r.Get("/health", rt.health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.authHandler.Register)
			r.Post("/login", rt.authHandler.Login)
			r.Post("/sessions", rt.authHandler.CreateSession)
			r.Post("/sessions/refresh", rt.authHandler.RefreshSession)
			r.Delete("/sessions", rt.authHandler.DeleteSession)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth())
				r.Get("/me", rt.authHandler.Me)
				r.Put("/password", rt.authHandler.ChangePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(auth.RequireAuth())

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin())
				r.Get("/", rt.userHandler.List)
				r.Put("/{id}/status", rt.userHandler.SetStatus)
				r.Put("/{id}/role", rt.userHandler.SetRole)
				r.Post("/{id}/confirm-email", rt.userHandler.ConfirmEmail)
			})

			// Self-or-admin authorization happens inside the handlers.
			r.Get("/{id}", rt.userHandler.Get)
			r.Delete("/{id}", rt.userHandler.Delete)
			r.Delete("/{id}/sessions", rt.userHandler.RevokeSessions)

			r.Get("/{id}/preferences", rt.prefHandler.Get)
			r.Put("/{id}/preferences", rt.prefHandler.Update)
			r.Delete("/{id}/preferences", rt.prefHandler.Reset)
		})
	})

	return r
}
