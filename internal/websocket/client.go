package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"dm-chat/internal/models"
	"dm-chat/internal/services"
	"dm-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one streaming session. It is created with the identity the
// handshake resolved (nil for anonymous) and moves to the subscribed state on
// a successful subscribe envelope. Anonymous or non-participant actions close
// the connection; the handshake itself never rejects.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	roomSvc *services.RoomService
	msgSvc  *services.MessageService

	user      *models.User // nil until authenticated; stays nil for anonymous
	room      *models.Room // nil until subscribed
	sessionID string

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.User, roomSvc *services.RoomService, msgSvc *services.MessageService) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		roomSvc:   roomSvc,
		msgSvc:    msgSvc,
		user:      user,
		sessionID: uuid.NewString(),
	}
}

// enqueue hands a payload to the write pump without blocking. Returns false
// if the session is closed or its buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

func (c *Client) sendEvent(ev *models.WebSocketEvent) {
	if data, err := json.Marshal(ev); err == nil {
		c.enqueue(data)
	} else {
		logger.Error("Error marshaling event: %v", err)
	}
}

func (c *Client) sendError(msg string) {
	c.sendEvent(&models.WebSocketEvent{Type: models.EventError, Error: msg})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}

		var ev models.WebSocketEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError("invalid_json")
			continue
		}

		switch ev.Type {
		case models.EventSubscribe:
			if !c.handleSubscribe(&ev) {
				return
			}
		case models.EventMessage:
			if !c.handleMessage(&ev) {
				return
			}
		case models.EventMarkRead:
			if !c.handleMarkRead(&ev) {
				return
			}
		default:
			c.sendError("unsupported_type")
		}
	}
}

// handleSubscribe drives the Authenticated -> Subscribed transition. Only an
// authenticated participant may subscribe; anything else is unauthorized and
// ends the session. Returns false when the connection should close.
func (c *Client) handleSubscribe(ev *models.WebSocketEvent) bool {
	if c.user == nil {
		c.sendError("unauthorized")
		return false
	}
	if c.room != nil {
		c.sendError("already_subscribed")
		return true
	}

	room, err := c.roomSvc.GetRoomForUser(context.Background(), ev.RoomID, c.user.ID)
	if err != nil {
		logger.Debug("Subscribe rejected for user %d room %d: %v", c.user.ID, ev.RoomID, err)
		c.sendError("unauthorized")
		return false
	}

	c.room = room
	c.hub.Subscribe(c)
	c.sendEvent(&models.WebSocketEvent{
		Type:      models.EventSubscribed,
		RoomID:    room.ID,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return true
}

// handleMessage persists an inbound message, then fans it out to the peer's
// live sessions. Fan-out is best-effort; the store is the source of truth.
func (c *Client) handleMessage(ev *models.WebSocketEvent) bool {
	if c.user == nil || c.room == nil {
		c.sendError("unauthorized")
		return false
	}

	msg, err := c.msgSvc.Append(context.Background(), c.room.ID, c.user.ID, ev.Content)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			c.sendError("empty_content")
		} else if errors.Is(err, services.ErrNotParticipant) {
			c.sendError("unauthorized")
			return false
		} else {
			logger.Error("Error saving message: %v", err)
			c.sendError("send_failed")
		}
		return true
	}

	out := &models.WebSocketEvent{
		Type:      models.EventMessage,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Sender:    c.user.Username,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
	}
	data, err := json.Marshal(out)
	if err != nil {
		logger.Error("Error marshaling message: %v", err)
		return true
	}

	// Echo to the sender, push to the peer if live.
	c.enqueue(data)
	c.hub.DeliverToUser(c.room.PeerOf(c.user.ID), c.room.ID, data)
	return true
}

// handleMarkRead flips the read flag and pushes a receipt to the original
// sender's live sessions.
func (c *Client) handleMarkRead(ev *models.WebSocketEvent) bool {
	if c.user == nil || c.room == nil {
		c.sendError("unauthorized")
		return false
	}

	msg, err := c.msgSvc.MarkRead(context.Background(), ev.MessageID, c.user.ID)
	if err != nil {
		logger.Debug("Mark read rejected for user %d message %d: %v", c.user.ID, ev.MessageID, err)
		c.sendError("mark_read_failed")
		return true
	}

	receipt := &models.WebSocketEvent{
		Type:      models.EventRead,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		SenderID:  c.user.ID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if data, err := json.Marshal(receipt); err == nil {
		c.hub.DeliverToUser(msg.SenderID, msg.RoomID, data)
	}
	return true
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
