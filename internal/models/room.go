package models

import "time"

// Room is a two-party conversation. UserAID is always the smaller of the two
// participant IDs and Name is derived from the sorted pair, so each unordered
// pair of users maps to exactly one room.
type Room struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	UserAID      int        `json:"-"`
	UserBID      int        `json:"-"`
	Participants []*User    `json:"participants,omitempty"`
	Messages     []*Message `json:"messages,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasParticipant reports whether userID is one of the room's two participants.
func (r *Room) HasParticipant(userID int) bool {
	return userID == r.UserAID || userID == r.UserBID
}

// PeerOf returns the other participant's ID. The caller must already be a
// participant.
func (r *Room) PeerOf(userID int) int {
	if userID == r.UserAID {
		return r.UserBID
	}
	return r.UserAID
}

type Message struct {
	ID        int       `json:"id"`
	RoomID    int       `json:"room_id"`
	SenderID  int       `json:"sender_id"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"timestamp"`
}

type CreateRoomRequest struct {
	UserID int `json:"user_id"`
}
