package handler

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/middleware"
	"github.com/friendsforever/server-go/internal/realtime"
)

// Connector accepts new real-time connections and their events.
type Connector interface {
	realtime.Handler
	Connect(conn realtime.Conn)
}

type WebSocketHandler struct {
	connector      Connector
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(connector Connector, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		connector:      connector,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

// originAllowed accepts non-browser clients, the same host, or the
// configured origin list when one is set.
func (h *WebSocketHandler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	return slices.Contains(h.allowedOrigins, origin)
}

// GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}
	if !h.originAllowed(r) {
		log.Warn().Int64("userId", userID).Str("origin", r.Header.Get("Origin")).Msg("websocket origin rejected")
		writeError(w, apperrors.Forbidden("Origin not allowed"))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Int64("userId", userID).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(userID, ws, h.connector)
	h.connector.Connect(client)

	log.Info().
		Int64("userId", userID).
		Str("connId", client.ID()).
		Msg("websocket connection established")

	client.Run()
}
