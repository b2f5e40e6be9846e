package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
	"github.com/cwrk-planet/session-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type stubGate struct{}

func (g *stubGate) AdmitRoom(_ context.Context, token, roomID string) (domain.Session, *service.Rejection) {
	switch token {
	case "good":
	case "early":
		return domain.Session{}, &service.Rejection{Kind: service.RejectBadRequest, Reason: service.ReasonBeforeStart}
	default:
		return domain.Session{}, &service.Rejection{Kind: service.RejectUnauthorized, Reason: service.ReasonInvalidToken}
	}
	return domain.Session{Key: roomID, Principal: domain.Principal{ParticipantID: 7}, Role: domain.RoleClient}, nil
}

func (g *stubGate) AdmitConfirmation(ctx context.Context, token, bookingID string) (domain.Session, *service.Rejection) {
	return g.AdmitRoom(ctx, token, bookingID)
}

type stubChat struct {
	mu  sync.Mutex
	got []service.ChatPayload
}

func (c *stubChat) Handle(_ context.Context, sess domain.Session, in service.ChatPayload) (*domain.ChatMessage, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in.RoomID = sess.Key
	c.got = append(c.got, in)
	return &domain.ChatMessage{}, 1, nil
}

func (c *stubChat) received() []service.ChatPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]service.ChatPayload(nil), c.got...)
}

type stubSched struct {
	mu    sync.Mutex
	rooms []string
}

func (s *stubSched) ScheduleRoomTimeout(_ context.Context, roomID string) service.ScheduleOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, roomID)
	return service.ScheduleArmed
}

type harness struct {
	srv       *httptest.Server
	gate      *stubGate
	chat      *stubChat
	sched     *stubSched
	rooms     *hub.Registry
	listeners *hub.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gate:      &stubGate{},
		chat:      &stubChat{},
		sched:     &stubSched{},
		rooms:     hub.NewRegistry(),
		listeners: hub.NewRegistry(),
	}
	s := NewServer(h.gate, h.chat, h.sched, h.rooms, h.listeners, Options{MessageRate: 1000, MessageBurst: 100})

	r := chi.NewRouter()
	r.Get("/ws/rooms/{roomId}", s.HandleRoom)
	r.Get("/ws/bookings/{bookingId}/confirmation", s.HandleConfirmation)
	h.srv = httptest.NewServer(r)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + path
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	c, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readClose(t *testing.T, c *websocket.Conn) *websocket.CloseError {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := c.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
		return ce
	}
}

func TestHandleRoom_RejectionClosesWithDistinctCode(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/ws/rooms/R1", "early")
	ce := readClose(t, c)

	require.Equal(t, hub.CloseRejected, ce.Code)
	require.Equal(t, "admission rejected: session has not started yet", ce.Text)
	require.Zero(t, h.rooms.Total())
	h.sched.mu.Lock()
	require.Empty(t, h.sched.rooms)
	h.sched.mu.Unlock()
}

func TestHandleRoom_PlainHTTPGetsStatus(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/ws/rooms/R1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleRoom_ChatRoundTrip(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/ws/rooms/R1", "good")

	require.Eventually(t, func() bool { return h.rooms.Count("R1") == 1 }, time.Second, 5*time.Millisecond)
	h.sched.mu.Lock()
	require.Equal(t, []string{"R1"}, h.sched.rooms)
	h.sched.mu.Unlock()

	// client-supplied room and sender are not forwarded
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"roomId":"R2","sender":1,"content":"hi","type":"TEXT"}`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"content":"second"}`)))

	require.Eventually(t, func() bool { return len(h.chat.received()) == 2 }, time.Second, 5*time.Millisecond)
	got := h.chat.received()
	require.Equal(t, "R1", got[0].RoomID)
	require.Equal(t, "hi", got[0].Content)
	require.Empty(t, got[0].Sender)
	require.Equal(t, "second", got[1].Content)

	// server push reaches the client
	for _, conn := range h.rooms.Snapshot("R1") {
		require.NoError(t, conn.Send([]byte(`{"content":"from server"}`)))
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"from server"}`, string(data))
}

func TestHandleRoom_ForcedCloseAndDisconnect(t *testing.T) {
	h := newHarness(t)
	expired := h.dial(t, "/ws/rooms/R1", "good")
	leaving := h.dial(t, "/ws/rooms/R2", "good")

	require.Eventually(t, func() bool { return h.rooms.Total() == 2 }, time.Second, 5*time.Millisecond)

	for _, conn := range h.rooms.Snapshot("R1") {
		require.NoError(t, conn.Close(hub.CloseSessionExpired, hub.ReasonSessionExpired))
		require.False(t, conn.Open())
		require.ErrorIs(t, conn.Send([]byte("late")), ErrConnClosed)
	}
	ce := readClose(t, expired)
	require.Equal(t, hub.CloseSessionExpired, ce.Code)
	require.Equal(t, "session already expired", ce.Text)

	require.NoError(t, leaving.Close())
	require.Eventually(t, func() bool { return h.rooms.Total() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandleConfirmation_PushOnly(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/ws/bookings/B1/confirmation", "good")

	require.Eventually(t, func() bool { return h.listeners.Count("B1") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"content":"ignored"}`)))

	msg, err := json.Marshal(domain.ConfirmationMessage{Type: domain.ConfirmationApproved, BookingID: "B1"})
	require.NoError(t, err)
	for _, conn := range h.listeners.Snapshot("B1") {
		require.NoError(t, conn.Send(msg))
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"APPROVED"`)
	require.Empty(t, h.chat.received())
	require.Zero(t, h.rooms.Total())

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.listeners.Count("B1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandleConfirmation_BadToken(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/ws/bookings/B1/confirmation", "nope")

	ce := readClose(t, c)
	require.Equal(t, hub.CloseRejected, ce.Code)
	require.Equal(t, hub.RejectedReason(service.ReasonInvalidToken), ce.Text)
	require.Zero(t, h.listeners.Total())
}
