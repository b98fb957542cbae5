package handlers

import (
	"errors"
	"net/http"

	"dm-chat/internal/auth"
	"dm-chat/internal/models"
	"dm-chat/internal/services"
	ws "dm-chat/internal/websocket"
	"dm-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	roomService *services.RoomService
	msgService  *services.MessageService
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, roomService *services.RoomService, msgService *services.MessageService, hub *ws.Hub) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		roomService: roomService,
		msgService:  msgService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket upgrades the connection after resolving the handshake
// credential. A missing or invalid token is not a handshake error: the
// session starts anonymous and every subsequent action on it is rejected.
// The verification runs on this request's goroutine only, so slow lookups
// never stall other handshakes.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var user *models.User
	if token := r.URL.Query().Get("token"); token != "" {
		resolved, err := h.authService.VerifyToken(r.Context(), token)
		if err != nil {
			// Fail open: the kind stays visible in logs, the client does not
			// learn why and continues anonymous.
			logger.Debug("WebSocket handshake auth failed (%s), continuing anonymous", authErrorKind(err))
		} else {
			user = resolved
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, user, h.roomService, h.msgService)

	go client.WritePump()
	go client.ReadPump()
}

func authErrorKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, auth.ErrExpiredCredential):
		return "expired"
	case errors.Is(err, auth.ErrRevokedCredential):
		return "revoked"
	case errors.Is(err, auth.ErrUnknownSubject):
		return "unknown subject"
	default:
		return "internal"
	}
}
