package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arena-platform/gateway"
	"arena-platform/middleware"
	"arena-platform/tournament"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking belongs to the reverse proxy in this deployment.
		return true
	},
}

type WebSocketHandler struct {
	hub       *gateway.Hub
	manager   *tournament.Manager
	jwtSecret []byte
	logger    *slog.Logger
}

func NewWebSocketHandler(hub *gateway.Hub, manager *tournament.Manager, jwtSecret string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:       hub,
		manager:   manager,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// ServeWs upgrades the connection and binds it to a verified identity:
// either the user behind a valid token, or a guest display name. The
// tournament core only ever sees the resolved identity, never credentials.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	identity, alias, ok := h.resolveIdentity(r)
	if !ok {
		http.Error(w, "token or guest name required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := gateway.NewClient(uuid.NewString(), identity, alias, h.hub, h.manager, conn, h.logger)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) resolveIdentity(r *http.Request) (tournament.Identity, string, bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := middleware.ParseToken(h.jwtSecret, token)
		if err != nil {
			return tournament.Identity{}, "", false
		}
		idFloat, ok := claims["user_id"].(float64)
		if !ok || idFloat <= 0 {
			return tournament.Identity{}, "", false
		}
		nickname, _ := claims["nickname"].(string)
		if nickname == "" {
			return tournament.Identity{}, "", false
		}
		return tournament.UserIdentity(int(idFloat)), nickname, true
	}

	if guest := r.URL.Query().Get("guest"); guest != "" {
		return tournament.GuestIdentity(guest), guest, true
	}
	return tournament.Identity{}, "", false
}
