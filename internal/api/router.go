package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/cardboard/internal/session"
	"github.com/starford/cardboard/internal/ui"
)

// NewRouter creates a chi router with the page and all API routes mounted.
// authEnabled controls whether token auth is enforced.
func NewRouter(reg *session.Registry, renderer *ui.Renderer, authEnabled bool, token string) chi.Router {
	h := NewHandler(reg, renderer)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/", h.Page)

	r.Route("/api/sessions/{sid}", func(r chi.Router) {
		r.Use(SessionMiddleware(reg))

		r.Get("/board", h.GetBoard)
		r.Get("/events", h.Events)

		// Cards.
		r.Post("/cards", h.AddCard)
		r.Delete("/cards/{id}", h.DeleteCard)

		// Notifications.
		r.Delete("/toasts/{tid}", h.DismissToast)
	})

	return r
}
