package services

import (
	"context"
	"strings"

	"dm-chat/internal/database"
	"dm-chat/internal/models"
)

type MessageService struct {
	db database.Database
}

func NewMessageService(db database.Database) *MessageService {
	return &MessageService{db: db}
}

// Append persists a message to the room's log. The sender must be a
// participant and the content must be non-empty after trimming; the store
// assigns the timestamp.
func (s *MessageService) Append(ctx context.Context, roomID, senderID int, content string) (*models.Message, error) {
	room, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	return s.db.SaveMessage(ctx, roomID, senderID, content)
}

// History returns the room's messages in append order. Only participants may
// read it.
func (s *MessageService) History(ctx context.Context, roomID, requesterID int) ([]*models.Message, error) {
	room, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	return s.db.ListRoomMessages(ctx, roomID)
}

// MarkRead sets the read flag. Only the recipient may do so; repeating it on
// an already-read message is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, messageID, requesterID int) (*models.Message, error) {
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	room, err := s.db.GetRoomByID(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}
	if msg.SenderID == requesterID {
		return nil, ErrSelfMarkForbidden
	}
	if msg.IsRead {
		return msg, nil
	}

	if err := s.db.MarkMessageRead(ctx, msg.ID); err != nil {
		return nil, err
	}
	msg.IsRead = true
	return msg, nil
}
