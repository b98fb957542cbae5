package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryDB_UserUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	_, err := db.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = db.CreateUser(ctx, "alice2", "alice@example.com", "hash")
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetUserByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDB_RoomUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	alice, err := db.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := db.CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)

	room, err := db.CreateRoom(ctx, "chat_1_2", alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = db.CreateRoom(ctx, "chat_1_2", alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrDuplicate)

	found, err := db.GetRoomByName(ctx, "chat_1_2")
	require.NoError(t, err)
	require.Equal(t, room.ID, found.ID)
}

func TestMemoryDB_TokenRevocation(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	revoked, err := db.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, db.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = db.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// Long-expired entries are pruned on lookup.
	require.NoError(t, db.RevokeToken(ctx, "jti-old", time.Now().Add(-2*time.Hour)))
	revoked, err = db.IsTokenRevoked(ctx, "jti-old")
	require.NoError(t, err)
	require.False(t, revoked)
}
