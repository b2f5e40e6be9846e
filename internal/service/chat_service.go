package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"

	"github.com/go-playground/validator/v10"
)

// ChatPayload is the chat frame in both directions. RoomID, Sender and
// SenderRole are always taken from the connection's session.
type ChatPayload struct {
	ID         string             `json:"id,omitempty"`
	RoomID     string             `json:"roomId"`
	Sender     string             `json:"sender"`
	SenderRole domain.Role        `json:"senderRole"`
	Content    string             `json:"content" validate:"required,max=4000"`
	Type       domain.MessageType `json:"type" validate:"omitempty,oneof=TEXT IMAGE FILE"`
	SentAt     *time.Time         `json:"sentAt,omitempty"`
}

// ChatService persists inbound messages and fans them out to the room.
type ChatService struct {
	messages MessageStore
	conns    *hub.Registry
	clock    clock.Clock
	validate *validator.Validate
}

func NewChatService(messages MessageStore, conns *hub.Registry, c clock.Clock) *ChatService {
	if c == nil {
		c = clock.Real()
	}
	return &ChatService{
		messages: messages,
		conns:    conns,
		clock:    c,
		validate: validator.New(),
	}
}

// Handle stores in and broadcasts it to every open connection of the
// session's room. Nothing is broadcast if the message cannot be stored.
// It returns the stored message and the number of peers reached.
func (s *ChatService) Handle(ctx context.Context, sess domain.Session, in ChatPayload) (*domain.ChatMessage, int, error) {
	in.RoomID = sess.Key
	in.Sender = strconv.FormatInt(sess.Principal.ParticipantID, 10)
	in.SenderRole = sess.Role
	in.Content = strings.TrimSpace(in.Content)
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	createdAt := s.clock.Now()
	if in.SentAt != nil && !in.SentAt.IsZero() {
		createdAt = *in.SentAt
	}

	msg := &domain.ChatMessage{
		RoomID:     sess.Key,
		Sender:     sess.Principal.ParticipantID,
		SenderRole: sess.Role,
		Content:    in.Content,
		Type:       in.Type,
		CreatedAt:  createdAt,
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, 0, fmt.Errorf("save chat message: %w", err)
	}

	out := in
	out.ID = msg.ID
	out.SentAt = &msg.CreatedAt
	payload, err := json.Marshal(out)
	if err != nil {
		return msg, 0, fmt.Errorf("encode chat message: %w", err)
	}

	return msg, s.Broadcast(sess.Key, payload), nil
}

// Broadcast delivers payload to every open connection under roomID. Closed
// connections are skipped; connections that fail to accept the payload are
// dropped from the registry.
func (s *ChatService) Broadcast(roomID string, payload []byte) int {
	delivered := 0
	for _, c := range s.conns.Snapshot(roomID) {
		if !c.Open() {
			continue
		}
		if err := c.Send(payload); err != nil {
			slog.Warn("chat: send failed, dropping connection", "room_id", roomID, "conn_id", c.ID(), "err", err)
			s.conns.Remove(roomID, c)
			continue
		}
		delivered++
	}
	return delivered
}
