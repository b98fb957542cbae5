package services

import (
	"context"
	"errors"
	"fmt"

	"dm-chat/internal/database"
	"dm-chat/internal/models"

	"golang.org/x/sync/singleflight"
)

type RoomService struct {
	db    database.Database
	group singleflight.Group
}

func NewRoomService(db database.Database) *RoomService {
	return &RoomService{db: db}
}

// RoomKey derives the unique room name from an unordered user pair.
func RoomKey(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_%d_%d", userA, userB)
}

// GetOrCreateRoom returns the single room for the {callerID, otherID} pair,
// creating it if absent. Concurrent calls for the same pair converge on one
// room: in-process they are collapsed by singleflight on the pair key, across
// processes the unique index on rooms.name turns the race into a
// create-conflict-refetch.
func (s *RoomService) GetOrCreateRoom(ctx context.Context, callerID, otherID int) (*models.Room, error) {
	if callerID == otherID {
		return nil, ErrSelfRoom
	}

	caller, err := s.db.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrUnknownParticipant, callerID)
		}
		return nil, err
	}
	other, err := s.db.GetUserByID(ctx, otherID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrUnknownParticipant, otherID)
		}
		return nil, err
	}

	userA, userB := callerID, otherID
	if userA > userB {
		userA, userB = userB, userA
	}
	name := RoomKey(userA, userB)

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		return s.lookupOrCreate(ctx, name, userA, userB)
	})
	if err != nil {
		return nil, err
	}
	// Copy the shared singleflight result before decorating it per caller.
	shared := *v.(*models.Room)
	room := &shared

	if caller.ID == room.UserAID {
		room.Participants = []*models.User{caller, other}
	} else {
		room.Participants = []*models.User{other, caller}
	}

	messages, err := s.db.ListRoomMessages(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	room.Messages = messages

	return room, nil
}

func (s *RoomService) lookupOrCreate(ctx context.Context, name string, userA, userB int) (*models.Room, error) {
	room, err := s.db.GetRoomByName(ctx, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	room, err = s.db.CreateRoom(ctx, name, userA, userB)
	if err == nil {
		return room, nil
	}
	if errors.Is(err, database.ErrDuplicate) {
		// Lost the race to another process; the winner's room is ours too.
		return s.db.GetRoomByName(ctx, name)
	}
	return nil, err
}

// GetRoomForUser fetches a room the requester participates in. Returns
// database.ErrNotFound for a missing room and ErrNotParticipant for an
// outsider; callers on the REST surface deliberately present both the same
// way.
func (s *RoomService) GetRoomForUser(ctx context.Context, roomID, requesterID int) (*models.Room, error) {
	room, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

// ListRoomsFor returns the user's rooms, participants resolved, ordered
// most-recent-activity-first.
func (s *RoomService) ListRoomsFor(ctx context.Context, userID int) ([]*models.Room, error) {
	rooms, err := s.db.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, room := range rooms {
		userA, err := s.db.GetUserByID(ctx, room.UserAID)
		if err != nil {
			return nil, err
		}
		userB, err := s.db.GetUserByID(ctx, room.UserBID)
		if err != nil {
			return nil, err
		}
		room.Participants = []*models.User{userA, userB}
	}

	return rooms, nil
}
