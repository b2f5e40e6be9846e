package domain

import "time"

type Role string

const (
	RoleProvider Role = "PROVIDER"
	RoleClient   Role = "CLIENT"
	RoleAdmin    Role = "ADMIN"
)

// Claims are the validated token claims kept for logging and auditing.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// Principal is the identity produced once by credential validation.
type Principal struct {
	ParticipantID int64
	Role          Role
	Claims        Claims
}

// Session binds a principal to the room or booking its connection was
// admitted to. It is created at admission and never mutated.
type Session struct {
	Key       string // room id for chat, booking id for confirmations
	Principal Principal
	Role      Role // role inside the room or booking
}
