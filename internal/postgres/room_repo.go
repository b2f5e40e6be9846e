package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// scanRoom reads the column order shared by every room query.
func scanRoom(row pgx.Row) (domain.Room, error) {
	var rm domain.Room
	err := row.Scan(&rm.ID, &rm.PartyAID, &rm.PartyBID, &rm.StartTime, &rm.EndTime)
	return rm, err
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	if !validID(id) {
		return nil, domain.ErrRoomNotFound
	}
	rm, err := scanRoom(r.db.QueryRow(ctx, qRoomGet, id))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, domain.ErrRoomNotFound
	case err != nil:
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return &rm, nil
}

// Create inserts the room and writes the generated id back into it.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.QueryRow(ctx, qRoomCreate, room.PartyAID, room.PartyBID, room.StartTime, room.EndTime).
		Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrRoomNotFound
	}
	tag, err := r.db.Exec(ctx, qRoomDelete, id)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// ListActive returns rooms that still need an expiry: those open at `at`
// and those whose linked booking was never finalized. Used to re-arm
// timeouts after a restart.
func (r *RoomRepository) ListActive(ctx context.Context, at time.Time) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, qRoomListActive, at)
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Room, error) {
		return scanRoom(row)
	})
}
