package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cardforge/cardforge-api/internal/api"
	apimiddleware "github.com/cardforge/cardforge-api/internal/api/middleware"
)

// setupRouter wires the HTTP surface: health, the read-only session API,
// and the realtime upgrade endpoint.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.verifier)
	sessionHandler := api.NewSessionHandler(app.sessionStore, app.logger)
	healthHandler := api.NewHealthHandler(app.db)

	r.Get("/health", healthHandler.Handle)

	// The gateway does its own credential check during the upgrade
	// handshake, so it sits outside the auth middleware.
	r.Get("/ws", app.gateway.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/sessions", sessionHandler.List)
			r.Get("/sessions/{id}", sessionHandler.Get)
		})
	})

	return r
}
