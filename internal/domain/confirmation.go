package domain

import "time"

type ConfirmationType string

const (
	ConfirmationApproved ConfirmationType = "APPROVED"
	ConfirmationRejected ConfirmationType = "REJECTED"
)

// ConfirmationMessage is pushed to booking listeners and never persisted.
type ConfirmationMessage struct {
	Type      ConfirmationType `json:"type"`
	BookingID string           `json:"bookingId"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}
