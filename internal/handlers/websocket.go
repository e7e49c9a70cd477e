package handlers

import (
	"net/http"

	"plant-photo-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is public
	},
}

// WebSocketHandler serves the live discovery feed
type WebSocketHandler struct {
	hub          *services.WSHub
	userService  *services.UserService
	statsService *services.StatsService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, userService *services.UserService, statsService *services.StatsService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, userService: userService, statsService: statsService}
}

// HandleWebSocket handles GET /ws. The token query parameter is optional.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := r.URL.Query().Get("token"); token != "" {
		id, err := h.userService.ValidateJWT(token)
		if err != nil {
			respondError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	connID := uuid.New().String()
	h.hub.Register(connID, userID, conn)
	defer h.hub.Unregister(connID)

	hello := services.WSMessage{Type: services.MsgHello}
	if stats, err := h.statsService.Current(r.Context()); err == nil {
		hello.Data = stats
	} else {
		log.Error().Err(err).Str("conn_id", connID).Msg("Failed to load stats for hello")
	}
	if err := h.hub.Send(connID, hello); err != nil {
		log.Error().Err(err).Str("conn_id", connID).Msg("Failed to send hello message")
		return
	}

	// The feed is one-way; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("conn_id", connID).Msg("WebSocket error")
			}
			return
		}
	}
}
