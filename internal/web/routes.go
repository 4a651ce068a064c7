package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photobooth/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	sessionHandler := handlers.NewSessionHandler(s.booth)
	photosHandler := handlers.NewPhotosHandler(s.booth)
	configHandler := handlers.NewConfigHandler(s.config, s.catalog)
	healthHandler := handlers.NewHealthHandler(s.monitor)

	// Health check
	s.router.Get("/api/v1/health", healthHandler.Get)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event stream stays open, so it is outside the request timeout.
		r.Get("/session/events", sessionHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			// Config
			r.Get("/config", configHandler.Get)
			r.Get("/filters", handlers.ListFilters)

			// Session
			r.Get("/session", sessionHandler.Get)
			r.Get("/session/frame", sessionHandler.Frame)
			r.Post("/session/countdown", sessionHandler.StartCountdown)
			r.Post("/session/mode", sessionHandler.ToggleMode)
			r.Post("/session/confirm", sessionHandler.Confirm)
			r.Put("/session/filter", sessionHandler.SetFilter)
			r.Get("/session/result", sessionHandler.Download)
			r.Post("/session/reset", sessionHandler.Reset)

			// Photos
			r.Get("/session/photos", photosHandler.List)
			r.Get("/session/photos/{id}", photosHandler.Get)
			r.Get("/session/photos/{id}/thumb", photosHandler.Thumbnail)
			r.Post("/session/photos/{id}/toggle", photosHandler.Toggle)
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex returns a placeholder page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Photobooth</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #f472b6; }
        p { color: #aaa; }
        a { color: #f472b6; }
        img { max-width: 480px; border-radius: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Photobooth</h1>
        <p><img src="/api/v1/session/frame" alt="live view"></p>
        <p>Session state: <a href="/api/v1/session">/api/v1/session</a>, events: <a href="/api/v1/session/events">/api/v1/session/events</a></p>
    </div>
</body>
</html>`))
}
