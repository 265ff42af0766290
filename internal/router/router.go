// Package router sets up all HTTP routes and middleware chains of the card
// service. Generation endpoints share a per-IP rate limit; the capture
// page stays unlimited since the headless browser hits it once per tier.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"newyearcard/internal/handlers"
	"newyearcard/internal/middleware"
	"newyearcard/web"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. limiter may be nil.
func New(api *handlers.API, cards *handlers.Cards, images *handlers.Images, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)
	r.Handle("/static/*", staticHandler())

	// Images: stored backgrounds and server-rendered cards.
	r.Get("/images/{filename}", images.Serve)
	r.Get("/card-image", images.CardImage)

	// Pages that only read state.
	r.Get("/", cards.Home)
	r.Get("/cards/{id}", cards.Show)
	r.Get("/cards/{id}/capture", cards.Capture)
	r.Get("/shared/{id}", cards.Shared)

	// Everything that calls a provider or the browser.
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Get("/card", cards.New)
		r.Post("/cards/{id}/background", cards.ChangeBackground)
		r.Post("/cards/{id}/export", cards.Export)

		r.Get("/generate-greeting", api.GenerateGreeting)
		r.Post("/generate-greeting", api.GenerateGreeting)
		r.Post("/generate-image", api.GenerateImage)
	})

	return r
}

// staticHandler serves the embedded CSS and JS under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	h := http.StripPrefix("/static/", http.FileServerFS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		h.ServeHTTP(w, r)
	})
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
