package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/session-service/internal/domain"
)

type Scheduler interface {
	ScheduleRoomTimeout(ctx context.Context, roomID string) ScheduleOutcome
}

type Notifier interface {
	NotifyApproved(bookingID string) int
	NotifyRejected(bookingID, reason string) int
}

type DecisionStore interface {
	Get(ctx context.Context, id string) (*domain.Booking, error)
	Save(ctx context.Context, b *domain.Booking) error
}

// DecisionService applies a provider's approve/reject decision to a booking
// waiting for confirmation.
type DecisionService struct {
	bookings  DecisionStore
	rooms     RoomCreator
	notifier  Notifier
	scheduler Scheduler
}

func NewDecisionService(bookings DecisionStore, rooms RoomCreator, n Notifier, s Scheduler) *DecisionService {
	return &DecisionService{bookings: bookings, rooms: rooms, notifier: n, scheduler: s}
}

// Approve opens a room for the booking's time slot, schedules its expiry
// and tells the listeners.
func (s *DecisionService) Approve(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := s.pending(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	room := &domain.Room{
		PartyAID:  b.PartyAID,
		PartyBID:  b.PartyBID,
		StartTime: b.StartDate,
		EndTime:   b.EndDate,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	b.RoomID = &room.ID
	b.Status = domain.StatusScheduled
	if err := s.bookings.Save(ctx, b); err != nil {
		// the room has no booking pointing at it; drop it
		if derr := s.rooms.Delete(context.WithoutCancel(ctx), room.ID); derr != nil {
			slog.Error("orphan room left after failed approve", "booking_id", b.ID, "room_id", room.ID, "err", derr)
		}
		return nil, fmt.Errorf("save booking: %w", err)
	}

	s.notifier.NotifyApproved(b.ID)
	outcome := s.scheduler.ScheduleRoomTimeout(ctx, room.ID)
	slog.Info("booking approved", "booking_id", b.ID, "room_id", room.ID, "timeout", outcome)
	return b, nil
}

func (s *DecisionService) Reject(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	b, err := s.pending(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	b.Status = domain.StatusCancelled
	if reason != "" {
		b.Reason = &reason
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}

	s.notifier.NotifyRejected(b.ID, reason)
	slog.Info("booking rejected", "booking_id", b.ID)
	return b, nil
}

func (s *DecisionService) pending(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusWaitingForConfirmation {
		return nil, fmt.Errorf("%w: booking is %s", domain.ErrBookingState, b.Status)
	}
	return b, nil
}
