package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dm-chat/internal/models"
	"dm-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// User Repository Implementation
func (db *PostgresDB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_online, last_seen, created_at)
		VALUES ($1, $2, $3, false, NOW(), NOW())
		RETURNING id, username, email, is_online, last_seen`

	user := &models.User{PasswordHash: passwordHash}
	err := db.pool.QueryRow(ctx, query, username, email, passwordHash).Scan(
		&user.ID, &user.Username, &user.Email, &user.IsOnline, &user.LastSeen,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, is_online, last_seen FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsOnline, &user.LastSeen,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, email, is_online, last_seen FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.IsOnline, &user.LastSeen,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (db *PostgresDB) ListUsersExcept(ctx context.Context, id int) ([]*models.User, error) {
	query := `
		SELECT id, username, email, is_online, last_seen
		FROM users
		WHERE id <> $1
		ORDER BY username`

	rows, err := db.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.IsOnline, &user.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (db *PostgresDB) SetOnline(ctx context.Context, id int, online bool) error {
	query := `UPDATE users SET is_online = $2, last_seen = NOW() WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, online)
	return err
}

// Room Repository Implementation
func (db *PostgresDB) CreateRoom(ctx context.Context, name string, userAID, userBID int) (*models.Room, error) {
	query := `
		INSERT INTO rooms (name, user_a_id, user_b_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, name, user_a_id, user_b_id, created_at`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, name, userAID, userBID).Scan(
		&room.ID, &room.Name, &room.UserAID, &room.UserBID, &room.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return room, nil
}

func (db *PostgresDB) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	query := `SELECT id, name, user_a_id, user_b_id, created_at FROM rooms WHERE name = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, name).Scan(
		&room.ID, &room.Name, &room.UserAID, &room.UserBID, &room.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return room, nil
}

func (db *PostgresDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	query := `SELECT id, name, user_a_id, user_b_id, created_at FROM rooms WHERE id = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.UserAID, &room.UserBID, &room.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return room, nil
}

func (db *PostgresDB) ListRoomsForUser(ctx context.Context, userID int) ([]*models.Room, error) {
	query := `
		SELECT r.id, r.name, r.user_a_id, r.user_b_id, r.created_at
		FROM rooms r
		LEFT JOIN messages m ON m.room_id = r.id
		WHERE r.user_a_id = $1 OR r.user_b_id = $1
		GROUP BY r.id
		ORDER BY COALESCE(MAX(m.created_at), r.created_at) DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room := &models.Room{}
		if err := rows.Scan(&room.ID, &room.Name, &room.UserAID, &room.UserBID, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, roomID, senderID int, content string) (*models.Message, error) {
	// The timestamp is taken as the max of NOW() and the room's latest message
	// so per-room order never regresses if the clock steps backward.
	query := `
		INSERT INTO messages (room_id, sender_id, content, is_read, created_at)
		SELECT $1, $2, $3, false, GREATEST(NOW(), COALESCE(MAX(created_at), NOW()))
		FROM messages WHERE room_id = $1
		RETURNING id, room_id, sender_id, content, is_read, created_at`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, roomID, senderID, content).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return msg, nil
}

func (db *PostgresDB) ListRoomMessages(ctx context.Context, roomID int) ([]*models.Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, is_read, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at, id`

	rows, err := db.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PostgresDB) GetMessageByID(ctx context.Context, id int) (*models.Message, error) {
	query := `SELECT id, room_id, sender_id, content, is_read, created_at FROM messages WHERE id = $1`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return msg, nil
}

func (db *PostgresDB) MarkMessageRead(ctx context.Context, id int) error {
	query := `UPDATE messages SET is_read = true WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id)
	return err
}

// Token Repository Implementation
func (db *PostgresDB) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (jti, expires_at, revoked_at) VALUES ($1, $2, NOW())
		ON CONFLICT (jti) DO NOTHING`
	_, err := db.pool.Exec(ctx, query, jti, expiresAt)
	return err
}

func (db *PostgresDB) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	// Expired entries are pruned opportunistically; a stale row is harmless
	// because the token it blocks has expired anyway.
	cleanup := `DELETE FROM revoked_tokens WHERE expires_at < NOW() - INTERVAL '1 hour'`
	if _, err := db.pool.Exec(ctx, cleanup); err != nil {
		logger.Error("Error pruning revoked tokens: %v", err)
	}

	query := `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`

	var revoked bool
	err := db.pool.QueryRow(ctx, query, jti).Scan(&revoked)
	return revoked, err
}
