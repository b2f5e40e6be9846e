package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/stretchr/testify/mock"
)

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]domain.Room
	seq   int
	err   error
}

func newMemRooms(rooms ...domain.Room) *memRooms {
	m := &memRooms{rooms: map[string]domain.Room{}}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRooms) Get(_ context.Context, id string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &r, nil
}

func (m *memRooms) Create(_ context.Context, r *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.seq++
	r.ID = fmt.Sprintf("room-%d", m.seq)
	m.rooms[r.ID] = *r
	return nil
}

func (m *memRooms) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *memRooms) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *memRooms) setEnd(id string, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[id]
	r.EndTime = end
	m.rooms[id] = r
}

type memBookings struct {
	mu      sync.Mutex
	m       map[string]domain.Booking
	saves   int
	saveErr error

	// beforeFind, when set, runs at the start of FindByRoomAndEnd.
	beforeFind func()
}

func newMemBookings(bs ...domain.Booking) *memBookings {
	m := &memBookings{m: map[string]domain.Booking{}}
	for _, b := range bs {
		m.m[b.ID] = b
	}
	return m
}

func (m *memBookings) Get(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memBookings) FindByRoomAndEnd(_ context.Context, roomID string, end time.Time) (*domain.Booking, error) {
	if m.beforeFind != nil {
		m.beforeFind()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.m {
		if b.RoomID != nil && *b.RoomID == roomID && b.EndDate.Equal(end) {
			return &b, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (m *memBookings) Save(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.m[b.ID] = *b
	return nil
}

func (m *memBookings) status(id string) domain.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[id].Status
}

func (m *memBookings) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type memMessages struct {
	mu    sync.Mutex
	saved []domain.ChatMessage
	err   error
}

func (m *memMessages) Save(_ context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	msg.ID = fmt.Sprintf("msg-%d", len(m.saved)+1)
	m.saved = append(m.saved, *msg)
	return nil
}

func (m *memMessages) all() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatMessage(nil), m.saved...)
}

type mockValidator struct {
	mock.Mock
}

func (v *mockValidator) Validate(token string) (domain.Principal, error) {
	args := v.Called(token)
	return args.Get(0).(domain.Principal), args.Error(1)
}

func ptr[T any](v T) *T { return &v }
