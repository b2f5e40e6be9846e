package service

import (
	"context"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
)

type Stats struct {
	ActiveSessions        int `json:"activeSessions"`
	ActiveRooms           int `json:"activeRooms"`
	ScheduledTimeouts     int `json:"scheduledTimeouts"`
	ConfirmationListeners int `json:"confirmationListeners"`
}

type RoomStatus struct {
	RoomID         string `json:"roomId"`
	Sessions       int    `json:"sessions"`
	TimeoutPending bool   `json:"timeoutPending"`
}

// Admin is the operator view over live sessions, shared by the HTTP and
// gRPC admin surfaces.
type Admin struct {
	rooms     *hub.Registry
	listeners *hub.Registry
	scheduler *TimeoutScheduler
	decisions *DecisionService
}

func NewAdmin(rooms, listeners *hub.Registry, sched *TimeoutScheduler, decisions *DecisionService) *Admin {
	return &Admin{rooms: rooms, listeners: listeners, scheduler: sched, decisions: decisions}
}

func (a *Admin) Stats() Stats {
	return Stats{
		ActiveSessions:        a.rooms.Total(),
		ActiveRooms:           len(a.rooms.Keys()),
		ScheduledTimeouts:     a.scheduler.ScheduledCount(),
		ConfirmationListeners: a.listeners.Total(),
	}
}

func (a *Admin) Room(roomID string) RoomStatus {
	return RoomStatus{
		RoomID:         roomID,
		Sessions:       a.rooms.Count(roomID),
		TimeoutPending: a.scheduler.HasScheduledTimeout(roomID),
	}
}

func (a *Admin) ScheduleTimeout(ctx context.Context, roomID string) ScheduleOutcome {
	return a.scheduler.ScheduleRoomTimeout(ctx, roomID)
}

func (a *Admin) CancelTimeout(roomID string) bool {
	return a.scheduler.CancelRoomTimeout(roomID)
}

func (a *Admin) Approve(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return a.decisions.Approve(ctx, bookingID)
}

func (a *Admin) Reject(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	return a.decisions.Reject(ctx, bookingID, reason)
}
