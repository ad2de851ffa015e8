package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler holds API route handlers.
type Handler struct {
	bot     MessageHandler
	queries Queries
}

// NewHandler creates a new Handler.
func NewHandler(bot MessageHandler, queries Queries) *Handler {
	return &Handler{bot: bot, queries: queries}
}

// PostMessage handles POST /api/messages.
//
//	@Summary		Submit an inbound chat message
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MessageRequest	true	"Message"
//	@Success		202		{object}	MessageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages [post]
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	reply, err := h.bot.HandleMessage(r.Context(), req.toMessage())
	if err != nil {
		writeError(w, "handle message", err, "not found")
		return
	}
	writeJSON(w, http.StatusAccepted, reply)
}

// Rank handles GET /api/communities/{community}/members/{user}/rank.
//
//	@Summary		Get a member's level progress
//	@Tags			progression
//	@Produce		json
//	@Param			community	path		string	true	"Community ID"
//	@Param			user		path		string	true	"User ID"
//	@Success		200			{object}	RankResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/communities/{community}/members/{user}/rank [get]
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	community := chi.URLParam(r, "community")
	user := chi.URLParam(r, "user")

	rank, err := h.queries.RankOf(r.Context(), community, user)
	if err != nil {
		writeError(w, "rank", err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// Leaderboard handles GET /api/communities/{community}/leaderboard.
//
//	@Summary		Get the community leaderboard
//	@Tags			progression
//	@Produce		json
//	@Param			community	path		string	true	"Community ID"
//	@Param			limit		query		int		false	"Max entries (default 10, max 100)"
//	@Success		200			{object}	LeaderboardResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/communities/{community}/leaderboard [get]
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	community := chi.URLParam(r, "community")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
			return
		}
		limit = n
	}

	recs, err := h.queries.Leaderboard(r.Context(), community, limit)
	if err != nil {
		writeError(w, "leaderboard", err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, toLeaderboard(community, recs))
}

// Levels handles GET /api/levels.
//
//	@Summary		Get the XP curve
//	@Tags			progression
//	@Produce		json
//	@Success		200	{object}	LevelsResponse
//	@Security		BearerAuth
//	@Router			/levels [get]
func (h *Handler) Levels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LevelsResponse{
		MaxLevel: h.queries.MaxLevel(),
		Levels:   h.queries.Levels(),
	})
}
