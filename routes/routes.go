package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mygain/portal-gateway/app"
	"github.com/mygain/portal-gateway/handlers"
	"github.com/mygain/portal-gateway/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	// Rejected origins get no CORS headers, so the browser blocks the response
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: deps.Origins.AllowOriginFunc,
		AllowedMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:  []string{"Authorization", "Content-Type"},
		ExposedHeaders:  []string{"X-Request-Id"},
		MaxAge:          300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Account administration (employee admins only)
	r.Route("/users", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.AuthMiddleware.RequireAdmin)
		r.Get("/", deps.UserHandler.HandleList)
		r.Post("/", deps.UserHandler.HandleCreate)
		r.Patch("/{id}", deps.UserHandler.HandleUpdate)
		r.Delete("/{id}", deps.UserHandler.HandleDelete)
	})

	// Session of the caller
	r.Route("/session", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.AuthMiddleware.ResolveSession)
		r.Get("/", deps.SessionHandler.HandleGet)
		r.Get("/permissions/{module}", deps.SessionHandler.HandlePermission)
	})

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	return r
}
