package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the full HTTP surface. events is the SSE endpoint
// handler, mounted under /api/events when non-nil. Health endpoints stay
// unauthenticated; everything under /api shares the auth middleware.
func NewRouter(h *Handlers, events http.Handler, authMode, authToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(authMode, authToken))

		r.Get("/notes", h.listNotes)
		r.Get("/notes/*", h.getNote)
		r.Post("/notes/*", h.createNote)
		r.Put("/notes/*", h.updateNote)
		r.Delete("/notes/*", h.deleteNote)

		r.Post("/decorate", h.decorate)
		r.Post("/search", h.search)
		r.Get("/graph", h.graph)
		r.Get("/glossary", h.glossary)
		r.Get("/backlinks/*", h.backlinks)
		r.Post("/rebuild", h.triggerRebuild)

		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})

	return r
}
