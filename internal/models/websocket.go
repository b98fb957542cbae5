package models

// Envelope types exchanged over a websocket session.
type EventType string

const (
	EventSubscribe  EventType = "subscribe"
	EventSubscribed EventType = "subscribed"
	EventMessage    EventType = "message"
	EventMarkRead   EventType = "mark_read"
	EventRead       EventType = "read"
	EventError      EventType = "error"
)

// WebSocketEvent is the single wire envelope for both directions. Which
// fields are set depends on Type.
type WebSocketEvent struct {
	Type      EventType `json:"type"`
	RoomID    int       `json:"room_id,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	SenderID  int       `json:"sender_id,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
}
