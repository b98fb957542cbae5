package websocket

import (
	"context"
	"sync"

	"dm-chat/internal/database"
	"dm-chat/pkg/logger"
)

// Hub is the live-routing table: identity -> subscribed sessions. Mutations
// take the write lock; fan-out lookups only take the read lock so delivery in
// one room never serializes against other rooms. Presence I/O happens outside
// the lock.
type Hub struct {
	db database.Database

	mu       sync.RWMutex
	sessions map[int]map[*Client]bool
}

func NewHub(db database.Database) *Hub {
	return &Hub{
		db:       db,
		sessions: make(map[int]map[*Client]bool),
	}
}

// Subscribe registers a client that has completed the Subscribed transition.
// The user's first live session flips the online flag.
func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.user.ID]
	if !ok {
		set = make(map[*Client]bool)
		h.sessions[c.user.ID] = set
	}
	set[c] = true
	first := len(set) == 1
	h.mu.Unlock()

	if first {
		if err := h.db.SetOnline(context.Background(), c.user.ID, true); err != nil {
			logger.Error("Error setting user %d online: %v", c.user.ID, err)
		}
	}
	logger.Info("User %d subscribed to room %d (session %s)", c.user.ID, c.room.ID, c.sessionID)
}

// Unsubscribe removes a client from the routing table. Safe to call for
// clients that never subscribed and idempotent on repeat. The identity's last
// session going away flips the online flag off and stamps last-seen.
func (h *Hub) Unsubscribe(c *Client) {
	if c.user == nil {
		return
	}

	h.mu.Lock()
	set, ok := h.sessions[c.user.ID]
	if !ok || !set[c] {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.sessions, c.user.ID)
	}
	h.mu.Unlock()

	if last {
		if err := h.db.SetOnline(context.Background(), c.user.ID, false); err != nil {
			logger.Error("Error setting user %d offline: %v", c.user.ID, err)
		}
	}
	logger.Info("User %d session %s closed", c.user.ID, c.sessionID)
}

// DeliverToUser pushes payload to every session of userID subscribed to
// roomID. Delivery is best-effort: a session that is gone or has a full send
// buffer is skipped, persistence already happened.
func (h *Hub) DeliverToUser(userID, roomID int, payload []byte) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.sessions[userID] {
		if c.room != nil && c.room.ID == roomID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			logger.Debug("Dropped live delivery to user %d session %s", userID, c.sessionID)
		}
	}
}
