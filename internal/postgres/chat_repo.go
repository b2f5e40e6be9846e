package postgres

import (
	"context"

	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// Save inserts m and fills in the generated id.
func (r *ChatRepository) Save(ctx context.Context, m *domain.ChatMessage) error {
	return r.db.QueryRow(ctx, qMessageInsert,
		m.RoomID, m.Sender, string(m.SenderRole), m.Content, string(m.Type), m.CreatedAt,
	).Scan(&m.ID, &m.CreatedAt)
}
