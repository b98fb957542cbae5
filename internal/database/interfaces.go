package database

import (
	"context"
	"errors"
	"time"

	"dm-chat/internal/models"
)

// Storage-level sentinels. Both implementations map their engine's errors to
// these so the services stay engine-agnostic.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsersExcept(ctx context.Context, id int) ([]*models.User, error)
	// SetOnline flips the presence flag and stamps last_seen.
	SetOnline(ctx context.Context, id int, online bool) error
}

type RoomRepository interface {
	// CreateRoom fails with ErrDuplicate if a room with the same name exists;
	// callers handle the conflict by refetching.
	CreateRoom(ctx context.Context, name string, userAID, userBID int) (*models.Room, error)
	GetRoomByName(ctx context.Context, name string) (*models.Room, error)
	GetRoomByID(ctx context.Context, id int) (*models.Room, error)
	// ListRoomsForUser returns rooms ordered most-recent-activity-first.
	ListRoomsForUser(ctx context.Context, userID int) ([]*models.Room, error)
}

type MessageRepository interface {
	// SaveMessage assigns the server-side timestamp, clamped so it never
	// regresses below the room's latest message.
	SaveMessage(ctx context.Context, roomID, senderID int, content string) (*models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]*models.Message, error)
	GetMessageByID(ctx context.Context, id int) (*models.Message, error)
	MarkMessageRead(ctx context.Context, id int) error
}

type TokenRepository interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Database interface {
	UserRepository
	RoomRepository
	MessageRepository
	TokenRepository
	Close() error
}
