package database

import (
	"context"
	"sync"
	"time"

	"dm-chat/internal/models"
)

// MemoryDB is an in-memory Database used by tests. It honors the same
// sentinel errors and timestamp rules as PostgresDB.
type MemoryDB struct {
	mu sync.Mutex

	users        map[int]*models.User
	usersByEmail map[string]int
	rooms        map[int]*models.Room
	roomsByName  map[string]int
	messages     map[int]*models.Message
	roomMessages map[int][]int
	revoked      map[string]time.Time

	nextUserID    int
	nextRoomID    int
	nextMessageID int
	lastMessageAt map[int]time.Time

	// now is swappable so tests can drive the clock.
	now func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[int]*models.User),
		usersByEmail:  make(map[string]int),
		rooms:         make(map[int]*models.Room),
		roomsByName:   make(map[string]int),
		messages:      make(map[int]*models.Message),
		roomMessages:  make(map[int][]int),
		revoked:       make(map[string]time.Time),
		lastMessageAt: make(map[int]time.Time),
		nextUserID:    1,
		nextRoomID:    1,
		nextMessageID: 1,
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (db *MemoryDB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *MemoryDB) Close() error { return nil }

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyRoom(r *models.Room) *models.Room {
	c := *r
	c.Participants = nil
	c.Messages = nil
	return &c
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	return &c
}

// User Repository Implementation
func (db *MemoryDB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.usersByEmail[email]; exists {
		return nil, ErrDuplicate
	}

	user := &models.User{
		ID:           db.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		LastSeen:     db.now(),
	}
	db.nextUserID++
	db.users[user.ID] = user
	db.usersByEmail[email] = user.ID

	return copyUser(user), nil
}

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(db.users[id]), nil
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

func (db *MemoryDB) ListUsersExcept(ctx context.Context, id int) ([]*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var users []*models.User
	for uid := 1; uid < db.nextUserID; uid++ {
		if uid == id {
			continue
		}
		if user, ok := db.users[uid]; ok {
			users = append(users, copyUser(user))
		}
	}
	return users, nil
}

func (db *MemoryDB) SetOnline(ctx context.Context, id int, online bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[id]
	if !ok {
		return ErrNotFound
	}
	user.IsOnline = online
	user.LastSeen = db.now()
	return nil
}

// Room Repository Implementation
func (db *MemoryDB) CreateRoom(ctx context.Context, name string, userAID, userBID int) (*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.roomsByName[name]; exists {
		return nil, ErrDuplicate
	}

	room := &models.Room{
		ID:        db.nextRoomID,
		Name:      name,
		UserAID:   userAID,
		UserBID:   userBID,
		CreatedAt: db.now(),
	}
	db.nextRoomID++
	db.rooms[room.ID] = room
	db.roomsByName[name] = room.ID

	return copyRoom(room), nil
}

func (db *MemoryDB) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.roomsByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(db.rooms[id]), nil
}

func (db *MemoryDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room, ok := db.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(room), nil
}

func (db *MemoryDB) ListRoomsForUser(ctx context.Context, userID int) ([]*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	type entry struct {
		room     *models.Room
		activity time.Time
	}
	var entries []entry
	for _, room := range db.rooms {
		if room.UserAID != userID && room.UserBID != userID {
			continue
		}
		activity := room.CreatedAt
		if last, ok := db.lastMessageAt[room.ID]; ok {
			activity = last
		}
		entries = append(entries, entry{copyRoom(room), activity})
	}

	// Most recent activity first.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].activity.After(entries[j-1].activity); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	rooms := make([]*models.Room, len(entries))
	for i, e := range entries {
		rooms[i] = e.room
	}
	return rooms, nil
}

// Message Repository Implementation
func (db *MemoryDB) SaveMessage(ctx context.Context, roomID, senderID int, content string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.rooms[roomID]; !ok {
		return nil, ErrNotFound
	}

	ts := db.now()
	if last, ok := db.lastMessageAt[roomID]; ok && ts.Before(last) {
		ts = last
	}

	msg := &models.Message{
		ID:        db.nextMessageID,
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: ts,
	}
	db.nextMessageID++
	db.messages[msg.ID] = msg
	db.roomMessages[roomID] = append(db.roomMessages[roomID], msg.ID)
	db.lastMessageAt[roomID] = ts

	return copyMessage(msg), nil
}

func (db *MemoryDB) ListRoomMessages(ctx context.Context, roomID int) ([]*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	ids := db.roomMessages[roomID]
	messages := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, copyMessage(db.messages[id]))
	}
	return messages, nil
}

func (db *MemoryDB) GetMessageByID(ctx context.Context, id int) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	msg, ok := db.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

func (db *MemoryDB) MarkMessageRead(ctx context.Context, id int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	msg, ok := db.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.IsRead = true
	return nil
}

// Token Repository Implementation
func (db *MemoryDB) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.revoked[jti]; !exists {
		db.revoked[jti] = expiresAt
	}
	return nil
}

func (db *MemoryDB) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	for j, exp := range db.revoked {
		if exp.Before(now.Add(-time.Hour)) {
			delete(db.revoked, j)
		}
	}

	_, revoked := db.revoked[jti]
	return revoked, nil
}
