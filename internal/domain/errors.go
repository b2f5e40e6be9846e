package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotParticipant  = errors.New("user is not a party of the room")
	ErrBookingState    = errors.New("booking is not in the expected status")
	ErrInvalidMessage  = errors.New("invalid chat message")
)
