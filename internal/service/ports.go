package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"
)

type CredentialValidator interface {
	Validate(token string) (domain.Principal, error)
}

type RoomStore interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
}

// RoomCreator creates rooms for approved bookings. Delete only undoes a
// Create whose booking could not be saved.
type RoomCreator interface {
	Create(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id string) error
}

type BookingStore interface {
	Get(ctx context.Context, id string) (*domain.Booking, error)
	FindByRoomAndEnd(ctx context.Context, roomID string, end time.Time) (*domain.Booking, error)
	Save(ctx context.Context, b *domain.Booking) error
}

type MessageStore interface {
	Save(ctx context.Context, m *domain.ChatMessage) error
}
