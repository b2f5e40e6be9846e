package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
	"github.com/cwrk-planet/session-service/internal/security"
	"github.com/cwrk-planet/session-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Gate interface {
	AdmitRoom(ctx context.Context, token, roomID string) (domain.Session, *service.Rejection)
	AdmitConfirmation(ctx context.Context, token, bookingID string) (domain.Session, *service.Rejection)
}

type ChatHandler interface {
	Handle(ctx context.Context, sess domain.Session, in service.ChatPayload) (*domain.ChatMessage, int, error)
}

type Scheduler interface {
	ScheduleRoomTimeout(ctx context.Context, roomID string) service.ScheduleOutcome
}

// inbound is what a client may set on a chat frame; everything else is
// filled in from the session.
type inbound struct {
	Content string             `json:"content"`
	Type    domain.MessageType `json:"type"`
	SentAt  *time.Time         `json:"sentAt"`
}

type Server struct {
	upgrader  websocket.Upgrader
	gate      Gate
	chat      ChatHandler
	scheduler Scheduler
	rooms     *hub.Registry
	listeners *hub.Registry
	opts      Options
}

func NewServer(gate Gate, chat ChatHandler, sched Scheduler, rooms, listeners *hub.Registry, opts Options) *Server {
	return &Server{
		gate:      gate,
		chat:      chat,
		scheduler: sched,
		rooms:     rooms,
		listeners: listeners,
		opts:      opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleRoom serves GET /ws/rooms/{roomId}.
func (s *Server) HandleRoom(w http.ResponseWriter, r *http.Request) {
	sess, rej := s.gate.AdmitRoom(r.Context(), security.BearerFromRequest(r), chi.URLParam(r, "roomId"))
	if rej != nil {
		s.reject(w, r, rej)
		return
	}

	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	log := slog.With("room_id", sess.Key, "user_id", sess.Principal.ParticipantID, "conn_id", c.ID())

	s.rooms.Register(sess.Key, c)
	defer s.rooms.Remove(sess.Key, c)
	log.Info("ws session opened", "role", sess.Role, "peers", s.rooms.Count(sess.Key))

	ctx := context.WithoutCancel(r.Context())
	s.scheduler.ScheduleRoomTimeout(ctx, sess.Key)

	go c.writePump()
	c.readPump(func(data []byte) {
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Debug("ws bad frame", "err", err)
			return
		}
		_, _, err := s.chat.Handle(ctx, sess, service.ChatPayload{
			Content: in.Content,
			Type:    in.Type,
			SentAt:  in.SentAt,
		})
		if err != nil {
			log.Warn("ws chat message dropped", "err", err)
		}
	})

	_ = c.Close(websocket.CloseNormalClosure, "")
	log.Info("ws session closed")
}

// HandleConfirmation serves GET /ws/bookings/{bookingId}/confirmation.
// The channel is push-only; inbound frames are read and discarded.
func (s *Server) HandleConfirmation(w http.ResponseWriter, r *http.Request) {
	sess, rej := s.gate.AdmitConfirmation(r.Context(), security.BearerFromRequest(r), chi.URLParam(r, "bookingId"))
	if rej != nil {
		s.reject(w, r, rej)
		return
	}

	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	s.listeners.Register(sess.Key, c)
	defer s.listeners.Remove(sess.Key, c)
	slog.Debug("confirmation listener opened", "booking_id", sess.Key, "conn_id", c.ID())

	go c.writePump()
	c.readPump(nil)
	_ = c.Close(websocket.CloseNormalClosure, "")
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*wsConn, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.Warn("ws upgrade failed", "err", err)
		return nil, false
	}
	return newConn(conn, s.opts), true
}

// reject ends a handshake that failed admission. Websocket clients get a
// close frame they can inspect; plain HTTP callers get the status code.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, rej *service.Rejection) {
	slog.Info("ws admission rejected", "path", r.URL.Path, "kind", rej.Kind, "reason", rej.Reason)

	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, rej.Reason, rej.Kind.HTTPStatus())
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_ = newConn(conn, s.opts).Close(hub.CloseRejected, hub.RejectedReason(rej.Reason))
}
