package services

import "errors"

// Client-visible failure kinds for the room directory and message store.
// Handlers map these to 4xx responses; the streaming layer maps them to error
// envelopes.
var (
	ErrSelfRoom           = errors.New("cannot open a room with yourself")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotParticipant     = errors.New("not a room participant")
	ErrEmptyContent       = errors.New("message content is empty")
	ErrSelfMarkForbidden  = errors.New("sender cannot mark own message read")
)
