package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dm-chat/internal/auth"
	"dm-chat/internal/database"
	"dm-chat/internal/models"
	"dm-chat/internal/services"
	"dm-chat/pkg/logger"
)

// ChatHandlers serves the synchronous surface: user listing, room
// get-or-create and message history.
type ChatHandlers struct {
	authService *auth.Service
	roomService *services.RoomService
	msgService  *services.MessageService
	db          database.Database
}

func NewChatHandlers(authService *auth.Service, roomService *services.RoomService, msgService *services.MessageService, db database.Database) *ChatHandlers {
	return &ChatHandlers{
		authService: authService,
		roomService: roomService,
		msgService:  msgService,
		db:          db,
	}
}

// ListUsers returns every user except the caller.
func (h *ChatHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	users, err := h.db.ListUsersExcept(r.Context(), user.ID)
	if err != nil {
		logger.Error("List users error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// GetOrCreateRoom returns the caller's room with the requested user,
// creating it on first use. The response includes participants and history.
func (h *ChatHandlers) GetOrCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	room, err := h.roomService.GetOrCreateRoom(r.Context(), user.ID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfRoom):
			http.Error(w, "cannot open a room with yourself", http.StatusBadRequest)
		case errors.Is(err, services.ErrUnknownParticipant):
			http.Error(w, "user not found", http.StatusNotFound)
		default:
			logger.Error("Get or create room error: %v", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// ListRooms returns the caller's rooms ordered by latest activity.
func (h *ChatHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rooms, err := h.roomService.ListRoomsFor(r.Context(), user.ID)
	if err != nil {
		logger.Error("List rooms error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

// GetMessages returns a room's history. A missing room and a room the caller
// does not belong to answer identically so outsiders cannot probe for room
// existence.
func (h *ChatHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("room_id"))
	if err != nil {
		http.Error(w, "invalid room ID", http.StatusBadRequest)
		return
	}

	messages, err := h.msgService.History(r.Context(), roomID, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, services.ErrNotParticipant) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		logger.Error("Get messages error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []*models.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *ChatHandlers) identity(r *http.Request) (*models.User, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	return h.authService.VerifyToken(r.Context(), token)
}

