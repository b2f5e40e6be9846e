package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	if !validID(id) {
		return nil, domain.ErrBookingNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, qBookingGet, id))
}

func (r *BookingRepository) FindByRoomAndEnd(ctx context.Context, roomID string, end time.Time) (*domain.Booking, error) {
	if !validID(roomID) {
		return nil, domain.ErrBookingNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, qBookingByRoomAndEnd, roomID, end))
}

func (r *BookingRepository) Save(ctx context.Context, b *domain.Booking) error {
	cmd, err := r.db.Exec(ctx, qBookingSave, b.ID, b.RoomID, string(b.Status), b.Reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) scanOne(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.PartyAID, &b.PartyBID, &b.RoomID, &status, &b.Reason, &b.StartDate, &b.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	return &b, nil
}
