package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
)

// TimeoutState is the lifecycle of one room's scheduled expiry.
// Pending -> Firing -> Fired, or Pending -> Cancelled. Firing exists so that
// fire and cancel race on a single compare-and-swap.
type TimeoutState int32

const (
	TimeoutPending TimeoutState = iota
	TimeoutFiring
	TimeoutFired
	TimeoutCancelled
)

func (s TimeoutState) String() string {
	switch s {
	case TimeoutPending:
		return "pending"
	case TimeoutFiring:
		return "firing"
	case TimeoutFired:
		return "fired"
	case TimeoutCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type ScheduleOutcome string

const (
	ScheduleArmed          ScheduleOutcome = "armed"
	ScheduleAlreadyPending ScheduleOutcome = "already_pending"
	ScheduleRanNow         ScheduleOutcome = "ran_now"
	ScheduleRoomMissing    ScheduleOutcome = "room_missing"
	ScheduleStopped        ScheduleOutcome = "stopped"
)

type timeoutEntry struct {
	state atomic.Int32

	mu    sync.Mutex
	timer clock.Timer
	end   time.Time
}

func (e *timeoutEntry) load() TimeoutState { return TimeoutState(e.state.Load()) }

func (e *timeoutEntry) transition(from, to TimeoutState) bool {
	return e.state.CompareAndSwap(int32(from), int32(to))
}

type SchedulerConfig struct {
	Workers       int
	QueueSize     int
	ActionTimeout time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 15 * time.Second
	}
	return c
}

type timeoutJob struct {
	roomID string
	entry  *timeoutEntry
}

// TimeoutScheduler closes a room's sessions and ends its booking when the
// room's time is up. Entries are keyed by room id; at most one is pending
// per room. Expiry actions run on a fixed pool of workers.
type TimeoutScheduler struct {
	rooms    RoomStore
	bookings BookingStore
	conns    *hub.Registry
	clock    clock.Clock
	cfg      SchedulerConfig
	log      *slog.Logger

	entries sync.Map // room id -> *timeoutEntry

	jobs     chan timeoutJob
	closing  chan struct{}
	poolMu   sync.RWMutex
	stopped  bool
	workers  sync.WaitGroup
	stopOnce sync.Once
}

func NewTimeoutScheduler(rooms RoomStore, bookings BookingStore, conns *hub.Registry, c clock.Clock, cfg SchedulerConfig) *TimeoutScheduler {
	if c == nil {
		c = clock.Real()
	}
	cfg = cfg.withDefaults()
	s := &TimeoutScheduler{
		rooms:    rooms,
		bookings: bookings,
		conns:    conns,
		clock:    c,
		cfg:      cfg,
		log:      slog.Default().With("component", "timeout_scheduler"),
		jobs:     make(chan timeoutJob, cfg.QueueSize),
		closing:  make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.workers.Add(1)
		go s.work()
	}
	return s
}

// ScheduleRoomTimeout arms the expiry of roomID at the room's end time. It
// is a no-op while an entry is pending. A room that has already ended is
// expired synchronously, before this call returns.
func (s *TimeoutScheduler) ScheduleRoomTimeout(ctx context.Context, roomID string) ScheduleOutcome {
	if s.isStopped() {
		return ScheduleStopped
	}

	e := &timeoutEntry{}
	for {
		v, loaded := s.entries.LoadOrStore(roomID, e)
		if !loaded {
			break
		}
		old := v.(*timeoutEntry)
		switch old.load() {
		case TimeoutPending, TimeoutFiring:
			return ScheduleAlreadyPending
		default:
			// finished but not yet swept
			s.entries.CompareAndDelete(roomID, old)
		}
	}

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		s.entries.CompareAndDelete(roomID, e)
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.log.Warn("room not found, timeout not scheduled", "room_id", roomID)
		} else {
			s.log.Error("room lookup failed, timeout not scheduled", "room_id", roomID, "err", err)
		}
		return ScheduleRoomMissing
	}

	delay := room.EndTime.Sub(s.clock.Now())
	if delay <= 0 {
		if e.transition(TimeoutPending, TimeoutFiring) {
			s.log.Info("room already ended, expiring now", "room_id", roomID, "end", room.EndTime)
			s.expire(ctx, roomID, room.EndTime, e)
		}
		return ScheduleRanNow
	}

	s.arm(roomID, e, room.EndTime, delay)
	s.log.Debug("room timeout scheduled", "room_id", roomID, "end", room.EndTime, "in", delay)
	return ScheduleArmed
}

func (s *TimeoutScheduler) arm(roomID string, e *timeoutEntry, end time.Time, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.end = end
	if e.load() != TimeoutPending {
		return
	}
	e.timer = s.clock.AfterFunc(delay, func() { s.submit(roomID, e) })
}

// CancelRoomTimeout removes a pending entry. It returns false when there is
// nothing pending or the expiry has already started; a started expiry runs
// to completion.
func (s *TimeoutScheduler) CancelRoomTimeout(roomID string) bool {
	v, ok := s.entries.Load(roomID)
	if !ok {
		return false
	}
	e := v.(*timeoutEntry)
	if !e.transition(TimeoutPending, TimeoutCancelled) {
		return false
	}

	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	s.entries.CompareAndDelete(roomID, e)
	s.log.Info("room timeout cancelled", "room_id", roomID)
	return true
}

func (s *TimeoutScheduler) HasScheduledTimeout(roomID string) bool {
	v, ok := s.entries.Load(roomID)
	return ok && v.(*timeoutEntry).load() == TimeoutPending
}

func (s *TimeoutScheduler) ScheduledCount() int {
	n := 0
	s.entries.Range(func(_, v any) bool {
		if v.(*timeoutEntry).load() == TimeoutPending {
			n++
		}
		return true
	})
	return n
}

// SweepCompleted drops entries whose expiry already finished or was
// cancelled but which are still in the map.
func (s *TimeoutScheduler) SweepCompleted() int {
	n := 0
	s.entries.Range(func(k, v any) bool {
		switch v.(*timeoutEntry).load() {
		case TimeoutFired, TimeoutCancelled:
			if s.entries.CompareAndDelete(k, v) {
				n++
			}
		}
		return true
	})
	return n
}

// RunSweeper calls SweepCompleted every interval until ctx is done.
func (s *TimeoutScheduler) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-s.clock.After(interval):
			if n := s.SweepCompleted(); n > 0 {
				s.log.Info("swept completed room timeouts", "count", n)
			}
		}
	}
}

func (s *TimeoutScheduler) submit(roomID string, e *timeoutEntry) {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.jobs <- timeoutJob{roomID: roomID, entry: e}:
	case <-s.closing:
	}
}

func (s *TimeoutScheduler) work() {
	defer s.workers.Done()
	for j := range s.jobs {
		s.fire(j.roomID, j.entry)
	}
}

func (s *TimeoutScheduler) fire(roomID string, e *timeoutEntry) {
	if !e.transition(TimeoutPending, TimeoutFiring) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ActionTimeout)
	defer cancel()

	e.mu.Lock()
	end := e.end
	e.mu.Unlock()

	// The delay was computed once at schedule time. Re-read the end time so a
	// timer that woke early, or a room whose end moved, does not cut the
	// session short.
	room, err := s.rooms.Get(ctx, roomID)
	switch {
	case err != nil:
		s.log.Warn("room reload failed at expiry, using scheduled end", "room_id", roomID, "err", err)
	case room.EndTime.After(s.clock.Now()):
		e.state.Store(int32(TimeoutPending))
		delay := room.EndTime.Sub(s.clock.Now())
		s.arm(roomID, e, room.EndTime, delay)
		s.log.Info("room end moved, timeout re-armed", "room_id", roomID, "end", room.EndTime)
		return
	default:
		end = room.EndTime
	}

	s.expire(ctx, roomID, end, e)
}

// expire runs the timeout actions. The map entry is removed whatever
// happens in the first two steps.
//
// A connection can register after the first snapshot while the entry is
// still Firing; its ScheduleRoomTimeout sees a pending entry and returns.
// The second sweep runs after the entry is gone, so such a connection is
// either closed here or its own ScheduleRoomTimeout finds no entry and
// expires the room again.
func (s *TimeoutScheduler) expire(ctx context.Context, roomID string, end time.Time, e *timeoutEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("room timeout panicked", "room_id", roomID, "panic", r)
		}
		e.state.Store(int32(TimeoutFired))
		s.entries.CompareAndDelete(roomID, e)

		if late := s.closeSessions(roomID); late > 0 {
			s.log.Info("closed sessions that joined during expiry", "room_id", roomID, "count", late)
		}
	}()

	closed := s.closeSessions(roomID)
	s.finalizeBooking(ctx, roomID, end)
	s.log.Info("room expired", "room_id", roomID, "closed_sessions", closed)
}

func (s *TimeoutScheduler) closeSessions(roomID string) int {
	closed := 0
	for _, c := range s.conns.Snapshot(roomID) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("closing session panicked", "room_id", roomID, "conn_id", c.ID(), "panic", r)
				}
			}()
			if err := c.Close(hub.CloseSessionExpired, hub.ReasonSessionExpired); err != nil {
				s.log.Warn("closing expired session failed", "room_id", roomID, "conn_id", c.ID(), "err", err)
			}
		}()
		if s.conns.Remove(roomID, c) {
			closed++
		}
	}
	return closed
}

func (s *TimeoutScheduler) finalizeBooking(ctx context.Context, roomID string, end time.Time) {
	b, err := s.bookings.FindByRoomAndEnd(ctx, roomID, end)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			s.log.Info("no booking linked to expired room", "room_id", roomID, "end", end)
		} else {
			s.log.Error("booking lookup failed", "room_id", roomID, "err", err)
		}
		return
	}
	if b.Status == domain.StatusEnded {
		return
	}

	prev := b.Status
	b.Status = domain.StatusEnded
	if err := s.bookings.Save(ctx, b); err != nil {
		s.log.Error("booking finalize failed", "room_id", roomID, "booking_id", b.ID, "err", err)
		return
	}
	s.log.Info("booking ended", "room_id", roomID, "booking_id", b.ID, "from", prev)
}

type ActiveRoomLister interface {
	ListActive(ctx context.Context, at time.Time) ([]domain.Room, error)
}

// Recover schedules a timeout for every room the lister reports as still
// needing one. Rooms that ended while the process was down expire right
// away. It returns how many rooms were armed or expired.
func (s *TimeoutScheduler) Recover(ctx context.Context, lister ActiveRoomLister) (int, error) {
	rooms, err := lister.ListActive(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list active rooms: %w", err)
	}
	n := 0
	for _, r := range rooms {
		switch s.ScheduleRoomTimeout(ctx, r.ID) {
		case ScheduleArmed, ScheduleRanNow:
			n++
		}
	}
	s.log.Info("room timeouts recovered", "rooms", len(rooms), "scheduled", n)
	return n, nil
}

func (s *TimeoutScheduler) isStopped() bool {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	return s.stopped
}

// Shutdown stops pending timers, lets the workers finish queued expiries
// (bounded by ctx), then closes every connection still registered.
func (s *TimeoutScheduler) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.closing)
		s.entries.Range(func(_, v any) bool {
			e := v.(*timeoutEntry)
			e.mu.Lock()
			// a timer that already fired has a job in flight; leave it to drain
			if e.timer != nil && e.timer.Stop() {
				e.transition(TimeoutPending, TimeoutCancelled)
			}
			e.mu.Unlock()
			return true
		})

		s.poolMu.Lock()
		s.stopped = true
		close(s.jobs)
		s.poolMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.log.Warn("timeout workers did not drain in time", "err", err)
	}

	n := s.conns.CloseAll(hub.CloseGoingAway, hub.ReasonShutdown)
	s.log.Info("timeout scheduler stopped", "closed_sessions", n)
	return err
}
