package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
)

// ChatMessage is an append-only row written once per accepted inbound message.
type ChatMessage struct {
	ID         string      `db:"id"`
	RoomID     string      `db:"room_id"`
	Sender     int64       `db:"sender"`
	SenderRole Role        `db:"sender_role"`
	Content    string      `db:"content"`
	Type       MessageType `db:"type"`
	CreatedAt  time.Time   `db:"created_at"`
}
