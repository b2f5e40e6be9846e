package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
	"github.com/cwrk-planet/session-service/internal/hub/hubtest"
	"github.com/cwrk-planet/session-service/internal/service"

	"github.com/stretchr/testify/require"
)

type decisionFixture struct {
	rooms     *memRooms
	bookings  *memBookings
	listeners *hub.Registry
	sched     *service.TimeoutScheduler
	svc       *service.DecisionService
}

func newDecisionFixture(t *testing.T) *decisionFixture {
	t.Helper()
	c := clock.Fake(t0.Add(-time.Hour))
	f := &decisionFixture{
		rooms: newMemRooms(),
		bookings: newMemBookings(domain.Booking{
			ID: "B1", PartyAID: 1, PartyBID: 2,
			Status:    domain.StatusWaitingForConfirmation,
			StartDate: t0, EndDate: t0.Add(time.Hour),
		}),
		listeners: hub.NewRegistry(),
	}
	f.sched = service.NewTimeoutScheduler(f.rooms, f.bookings, hub.NewRegistry(), c, service.SchedulerConfig{Workers: 1})
	t.Cleanup(func() { _ = f.sched.Shutdown(context.Background()) })
	f.svc = service.NewDecisionService(f.bookings, f.rooms, service.NewConfirmationNotifier(f.listeners, c), f.sched)
	return f
}

func TestDecision_Approve(t *testing.T) {
	f := newDecisionFixture(t)
	l := hubtest.NewConn()
	f.listeners.Register("B1", l)

	b, err := f.svc.Approve(context.Background(), "B1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, b.Status)
	require.NotNil(t, b.RoomID)

	room, err := f.rooms.Get(context.Background(), *b.RoomID)
	require.NoError(t, err)
	require.Equal(t, int64(1), room.PartyAID)
	require.True(t, room.EndTime.Equal(t0.Add(time.Hour)))

	require.Equal(t, domain.StatusScheduled, f.bookings.status("B1"))
	require.True(t, f.sched.HasScheduledTimeout(room.ID))
	require.Len(t, l.Sent(), 1)
	require.Contains(t, string(l.Sent()[0]), `"APPROVED"`)

	_, err = f.svc.Approve(context.Background(), "B1")
	require.ErrorIs(t, err, domain.ErrBookingState)
}

func TestDecision_ApproveSaveFailureDropsRoom(t *testing.T) {
	f := newDecisionFixture(t)
	l := hubtest.NewConn()
	f.listeners.Register("B1", l)
	f.bookings.saveErr = errors.New("db down")

	_, err := f.svc.Approve(context.Background(), "B1")
	require.Error(t, err)

	require.Zero(t, f.rooms.count())
	require.Equal(t, domain.StatusWaitingForConfirmation, f.bookings.status("B1"))
	require.Zero(t, f.sched.ScheduledCount())
	require.Empty(t, l.Sent())
}

func TestDecision_Reject(t *testing.T) {
	f := newDecisionFixture(t)
	l := hubtest.NewConn()
	f.listeners.Register("B1", l)

	b, err := f.svc.Reject(context.Background(), "B1", "slot taken")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, b.Status)
	require.Equal(t, "slot taken", *b.Reason)
	require.Contains(t, string(l.Sent()[0]), `"REJECTED"`)
	require.Zero(t, f.sched.ScheduledCount())

	_, err = f.svc.Reject(context.Background(), "B1", "")
	require.ErrorIs(t, err, domain.ErrBookingState)

	_, err = f.svc.Reject(context.Background(), "B404", "")
	require.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestAdmin_StatsAndRoomControls(t *testing.T) {
	f := newDecisionFixture(t)
	rooms := hub.NewRegistry()
	rooms.Register("R1", hubtest.NewConn())
	rooms.Register("R1", hubtest.NewConn())
	rooms.Register("R2", hubtest.NewConn())
	f.listeners.Register("B1", hubtest.NewConn())

	admin := service.NewAdmin(rooms, f.listeners, f.sched, f.svc)
	b, err := admin.Approve(context.Background(), "B1")
	require.NoError(t, err)

	require.Equal(t, service.Stats{
		ActiveSessions:        3,
		ActiveRooms:           2,
		ScheduledTimeouts:     1,
		ConfirmationListeners: 1,
	}, admin.Stats())

	require.Equal(t, service.RoomStatus{RoomID: *b.RoomID, TimeoutPending: true}, admin.Room(*b.RoomID))
	require.Equal(t, service.RoomStatus{RoomID: "R1", Sessions: 2}, admin.Room("R1"))

	require.Equal(t, service.ScheduleAlreadyPending, admin.ScheduleTimeout(context.Background(), *b.RoomID))
	require.True(t, admin.CancelTimeout(*b.RoomID))
	require.False(t, admin.CancelTimeout(*b.RoomID))
	require.Zero(t, admin.Stats().ScheduledTimeouts)
}
