package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/inkwell/internal/api"
	apiMiddleware "github.com/phrazzld/inkwell/internal/api/middleware"
	"github.com/phrazzld/inkwell/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	authHandler := api.NewAuthHandler(app.userService, app.jwtService)
	contentHandler := api.NewContentHandler(app.contentService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/contents", func(r chi.Router) {
				r.Post("/generate", contentHandler.Generate)
				r.Get("/", contentHandler.List)
				r.Get("/{id}/status", contentHandler.Status)
				r.Get("/{id}", contentHandler.Get)
				r.Patch("/{id}", contentHandler.UpdateMetadata)
				r.Delete("/{id}", contentHandler.Delete)
				r.Post("/{id}/regenerate", contentHandler.Regenerate)
			})
		})
	})

	// The hub authenticates the handshake itself.
	r.Handle("/ws", app.hub)

	metrics.MustRegister()
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
