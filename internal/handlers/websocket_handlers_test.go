package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"dm-chat/internal/models"
	"dm-chat/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *models.WebSocketEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	ev := &models.WebSocketEvent{}
	require.NoError(t, conn.ReadJSON(ev))
	return ev
}

func subscribe(t *testing.T, conn *websocket.Conn, roomID int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(&models.WebSocketEvent{Type: models.EventSubscribe, RoomID: roomID}))
	ev := readEvent(t, conn)
	require.Equal(t, models.EventSubscribed, ev.Type)
	require.Equal(t, roomID, ev.RoomID)
}

func (e *testEnv) pairRoom(t *testing.T, token string, otherID int) *models.Room {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/room", token, models.CreateRoomRequest{UserID: otherID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeRoom(t, resp)
}

// Both participants connected: a sent message arrives at the peer without
// polling history.
func TestLiveDelivery(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	aliceConn := env.dialWS(t, alice.Token)
	bobConn := env.dialWS(t, bob.Token)
	subscribe(t, aliceConn, room.ID)
	subscribe(t, bobConn, room.ID)

	require.NoError(t, aliceConn.WriteJSON(&models.WebSocketEvent{Type: models.EventMessage, Content: "hello"}))

	got := readEvent(t, bobConn)
	require.Equal(t, models.EventMessage, got.Type)
	require.Equal(t, "hello", got.Content)
	require.Equal(t, alice.User.ID, got.SenderID)
	require.Equal(t, "alice", got.Sender)

	// The sender gets the persisted echo too.
	echo := readEvent(t, aliceConn)
	require.Equal(t, models.EventMessage, echo.Type)
	require.Equal(t, got.MessageID, echo.MessageID)
}

// Recipient offline: the message is durably stored and shows up exactly once
// in history, unread.
func TestOfflineDurability(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	aliceConn := env.dialWS(t, alice.Token)
	subscribe(t, aliceConn, room.ID)

	require.NoError(t, aliceConn.WriteJSON(&models.WebSocketEvent{Type: models.EventMessage, Content: "hi"}))
	echo := readEvent(t, aliceConn)
	require.Equal(t, models.EventMessage, echo.Type)

	// Bob connects later and fetches history.
	resp := env.request(t, http.MethodGet, fmt.Sprintf("/messages/%d", room.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messages []*models.Message
	require.NoError(t, decodeJSON(resp, &messages))
	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Content)
	require.False(t, messages[0].IsRead)
}

// A handshake with a bad credential still completes; the first privileged
// action fails and the connection closes.
func TestFailOpenHandshakeFailClosedActions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"tampered token", alice.Token[:len(alice.Token)-2] + "xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := env.dialWS(t, tt.token) // handshake succeeds

			require.NoError(t, conn.WriteJSON(&models.WebSocketEvent{Type: models.EventSubscribe, RoomID: room.ID}))
			ev := readEvent(t, conn)
			require.Equal(t, models.EventError, ev.Type)
			require.Equal(t, "unauthorized", ev.Error)

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			require.Error(t, err) // server closed the session
		})
	}
}

// An authenticated non-participant cannot subscribe.
func TestOutsiderSubscribeRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	carol := env.register(t, "carol", "carol@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	conn := env.dialWS(t, carol.Token)
	require.NoError(t, conn.WriteJSON(&models.WebSocketEvent{Type: models.EventSubscribe, RoomID: room.ID}))
	ev := readEvent(t, conn)
	require.Equal(t, models.EventError, ev.Type)
	require.Equal(t, "unauthorized", ev.Error)
}

// Empty content is rejected without dropping the session.
func TestEmptyContentKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	conn := env.dialWS(t, alice.Token)
	subscribe(t, conn, room.ID)

	require.NoError(t, conn.WriteJSON(&models.WebSocketEvent{Type: models.EventMessage, Content: "   "}))
	ev := readEvent(t, conn)
	require.Equal(t, models.EventError, ev.Type)
	require.Equal(t, "empty_content", ev.Error)

	require.NoError(t, conn.WriteJSON(&models.WebSocketEvent{Type: models.EventMessage, Content: "still here"}))
	ev = readEvent(t, conn)
	require.Equal(t, models.EventMessage, ev.Type)
	require.Equal(t, "still here", ev.Content)
}

// Mark-read over the stream flips the flag and pushes a receipt to the
// sender's live session.
func TestMarkReadReceipt(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	aliceConn := env.dialWS(t, alice.Token)
	bobConn := env.dialWS(t, bob.Token)
	subscribe(t, aliceConn, room.ID)
	subscribe(t, bobConn, room.ID)

	require.NoError(t, aliceConn.WriteJSON(&models.WebSocketEvent{Type: models.EventMessage, Content: "read me"}))
	delivered := readEvent(t, bobConn)
	require.Equal(t, models.EventMessage, delivered.Type)
	readEvent(t, aliceConn) // echo

	require.NoError(t, bobConn.WriteJSON(&models.WebSocketEvent{Type: models.EventMarkRead, MessageID: delivered.MessageID}))

	receipt := readEvent(t, aliceConn)
	require.Equal(t, models.EventRead, receipt.Type)
	require.Equal(t, delivered.MessageID, receipt.MessageID)

	msgSvc := services.NewMessageService(env.db)
	msgs, err := msgSvc.History(t.Context(), room.ID, alice.User.ID)
	require.NoError(t, err)
	require.True(t, msgs[0].IsRead)
}

// Presence follows the subscription lifecycle: first session flips online,
// last close flips offline.
func TestPresenceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	room := env.pairRoom(t, alice.Token, bob.User.ID)

	conn := env.dialWS(t, alice.Token)
	subscribe(t, conn, room.ID)

	require.Eventually(t, func() bool {
		user, err := env.db.GetUserByID(t.Context(), alice.User.ID)
		return err == nil && user.IsOnline
	}, 2*time.Second, 10*time.Millisecond)

	// A second session for the same identity keeps the user online.
	conn2 := env.dialWS(t, alice.Token)
	subscribe(t, conn2, room.ID)
	conn2.Close()

	require.Never(t, func() bool {
		user, err := env.db.GetUserByID(t.Context(), alice.User.ID)
		return err == nil && !user.IsOnline
	}, 300*time.Millisecond, 25*time.Millisecond)

	// Closing the last session marks the user offline.
	conn.Close()
	require.Eventually(t, func() bool {
		user, err := env.db.GetUserByID(t.Context(), alice.User.ID)
		return err == nil && !user.IsOnline
	}, 2*time.Second, 10*time.Millisecond)
}
