package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(bot MessageHandler, queries Queries, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(bot, queries)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Inbound chat messages.
	r.Post("/messages", h.PostMessage)

	// Progression views.
	r.Get("/communities/{community}/members/{user}/rank", h.Rank)
	r.Get("/communities/{community}/leaderboard", h.Leaderboard)
	r.Get("/levels", h.Levels)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
