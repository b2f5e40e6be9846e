package domain

import "time"

type BookingStatus string

const (
	StatusWaitingForPayment      BookingStatus = "WAITING_FOR_PAYMENT"
	StatusWaitingForConfirmation BookingStatus = "WAITING_FOR_CONFIRMATION"
	StatusCancelled              BookingStatus = "CANCELLED"
	StatusScheduled              BookingStatus = "SCHEDULED"
	StatusInProgress             BookingStatus = "IN_PROGRESS"
	StatusEnded                  BookingStatus = "ENDED"
)

// Booking is the persisted consultation record whose status the timeout
// scheduler finalizes.
type Booking struct {
	ID        string        `db:"id"`
	PartyAID  int64         `db:"party_a_id"`
	PartyBID  int64         `db:"party_b_id"`
	RoomID    *string       `db:"room_id"`
	Status    BookingStatus `db:"status"`
	Reason    *string       `db:"reason"`
	StartDate time.Time     `db:"start_date"`
	EndDate   time.Time     `db:"end_date"`
}

func (b *Booking) HasParty(userID int64) bool {
	return userID == b.PartyAID || userID == b.PartyBID
}
