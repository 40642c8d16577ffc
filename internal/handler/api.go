package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/middleware"
	"github.com/friendsforever/server-go/internal/service"
)

const maxLeaderboardSize = 100

// APIHandler serves the read-only REST surface next to the websocket.
type APIHandler struct {
	conversations   *service.ConversationService
	messages        *service.MessageService
	profiles        *service.ProfileService
	points          *service.PointsService
	leaderboardSize int
}

func NewAPIHandler(
	conversations *service.ConversationService,
	messages *service.MessageService,
	profiles *service.ProfileService,
	points *service.PointsService,
	leaderboardSize int,
) *APIHandler {
	return &APIHandler{
		conversations:   conversations,
		messages:        messages,
		profiles:        profiles,
		points:          points,
		leaderboardSize: leaderboardSize,
	}
}

func (h *APIHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Get("/me/points", h.PointsHistory)
	r.Get("/conversations/current", h.CurrentConversation)
	r.Get("/conversations/{conversationID}", h.GetConversation)
	r.Get("/conversations/{conversationID}/messages", h.ListMessages)
	r.Get("/leaderboard", h.Leaderboard)

	return r
}

// GET /v1/me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	user, err := h.profiles.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /v1/me/points
func (h *APIHandler) PointsHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	page := ParsePagination(r)
	entries, err := h.points.History(r.Context(), userID, page.Limit)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("failed to load points history")
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GET /v1/conversations/current
func (h *APIHandler) CurrentConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	conv, err := h.conversations.FindLiveForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("failed to load current conversation")
		writeError(w, apperrors.Database(err))
		return
	}
	if conv == nil {
		writeError(w, apperrors.NotFound("conversation"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// GET /v1/conversations/{conversationID}
func (h *APIHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}
	id, err := conversationID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conv, err := h.conversations.GetForParticipant(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// GET /v1/conversations/{conversationID}/messages
func (h *APIHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}
	id, err := conversationID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if _, err := h.conversations.GetForParticipant(ctx, id, userID); err != nil {
		writeError(w, err)
		return
	}

	page := ParsePagination(r)
	msgs, total, err := h.messages.List(ctx, id, page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Int64("conversationId", id).Msg("failed to list messages")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    total,
		"hasMore":  page.Offset+len(msgs) < total,
	})
}

// GET /v1/leaderboard
func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	n := h.leaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxLeaderboardSize {
			writeError(w, apperrors.InvalidInput("limit", "must be between 1 and 100"))
			return
		}
		n = parsed
	}

	entries, err := h.points.Leaderboard(r.Context(), n)
	if err != nil {
		log.Error().Err(err).Msg("failed to read leaderboard")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func conversationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("conversationId", "must be a positive integer")
	}
	return id, nil
}
