package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/security"
)

type RejectKind string

const (
	RejectUnauthorized RejectKind = "unauthorized"
	RejectForbidden    RejectKind = "forbidden"
	RejectBadRequest   RejectKind = "bad request"
	RejectServerError  RejectKind = "server error"
)

func (k RejectKind) HTTPStatus() int {
	switch k {
	case RejectUnauthorized:
		return http.StatusUnauthorized
	case RejectForbidden:
		return http.StatusForbidden
	case RejectBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

const (
	ReasonMissingToken   = "missing bearer token"
	ReasonTokenExpired   = "token expired"
	ReasonInvalidToken   = "invalid token"
	ReasonMissingID      = "missing id in path"
	ReasonRoomNotFound   = "room not found"
	ReasonBookingMissing = "booking not found"
	ReasonLookupFailed   = "lookup failed"
	ReasonNotParticipant = "not a participant of this room"
	ReasonNotParty       = "not a party of this booking"
	ReasonBeforeStart    = "session has not started yet"
	ReasonAfterEnd       = "session already ended"
)

// Rejection is the terminal negative outcome of admission.
type Rejection struct {
	Kind   RejectKind
	Reason string
	Err    error
}

func (r *Rejection) Error() string { return string(r.Kind) + ": " + r.Reason }
func (r *Rejection) Unwrap() error { return r.Err }

func reject(kind RejectKind, reason string, err error) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Err: err}
}

// AdmissionGate decides, once per handshake, whether a connection may join.
// A connection it rejects never reaches a registry.
type AdmissionGate struct {
	validator CredentialValidator
	rooms     RoomStore
	bookings  BookingStore
	clock     clock.Clock
}

func NewAdmissionGate(v CredentialValidator, rooms RoomStore, bookings BookingStore, c clock.Clock) *AdmissionGate {
	if c == nil {
		c = clock.Real()
	}
	return &AdmissionGate{validator: v, rooms: rooms, bookings: bookings, clock: c}
}

// AdmitRoom runs the chat handshake policy: credential, room lookup,
// membership, then time window.
func (g *AdmissionGate) AdmitRoom(ctx context.Context, token, roomID string) (domain.Session, *Rejection) {
	p, rej := g.authenticate(token)
	if rej != nil {
		return domain.Session{}, rej
	}
	if roomID == "" {
		return domain.Session{}, reject(RejectBadRequest, ReasonMissingID, nil)
	}

	// An id that reached a handshake but has no room behind it is a server
	// side inconsistency, not a caller mistake.
	room, err := g.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			slog.Warn("admission: room not found", "room_id", roomID)
			return domain.Session{}, reject(RejectServerError, ReasonRoomNotFound, err)
		}
		slog.Error("admission: room lookup failed", "room_id", roomID, "err", err)
		return domain.Session{}, reject(RejectServerError, ReasonLookupFailed, err)
	}

	if !room.HasParty(p.ParticipantID) {
		return domain.Session{}, reject(RejectForbidden, ReasonNotParticipant, domain.ErrNotParticipant)
	}

	switch room.Window(g.clock.Now()) {
	case -1:
		return domain.Session{}, reject(RejectBadRequest, ReasonBeforeStart, nil)
	case 1:
		return domain.Session{}, reject(RejectBadRequest, ReasonAfterEnd, nil)
	}

	return domain.Session{Key: room.ID, Principal: p, Role: room.RoleOf(p.ParticipantID)}, nil
}

// AdmitConfirmation admits a receive-only listener for a booking's decision.
func (g *AdmissionGate) AdmitConfirmation(ctx context.Context, token, bookingID string) (domain.Session, *Rejection) {
	p, rej := g.authenticate(token)
	if rej != nil {
		return domain.Session{}, rej
	}
	if bookingID == "" {
		return domain.Session{}, reject(RejectBadRequest, ReasonMissingID, nil)
	}

	b, err := g.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			slog.Warn("admission: booking not found", "booking_id", bookingID)
			return domain.Session{}, reject(RejectServerError, ReasonBookingMissing, err)
		}
		slog.Error("admission: booking lookup failed", "booking_id", bookingID, "err", err)
		return domain.Session{}, reject(RejectServerError, ReasonLookupFailed, err)
	}
	if !b.HasParty(p.ParticipantID) {
		return domain.Session{}, reject(RejectForbidden, ReasonNotParty, domain.ErrNotParticipant)
	}

	role := domain.RoleClient
	if p.ParticipantID == b.PartyAID {
		role = domain.RoleProvider
	}
	return domain.Session{Key: b.ID, Principal: p, Role: role}, nil
}

func (g *AdmissionGate) authenticate(token string) (domain.Principal, *Rejection) {
	p, err := g.validator.Validate(token)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, security.ErrMissingToken):
		return domain.Principal{}, reject(RejectUnauthorized, ReasonMissingToken, err)
	case errors.Is(err, security.ErrTokenExpired):
		return domain.Principal{}, reject(RejectUnauthorized, ReasonTokenExpired, err)
	default:
		return domain.Principal{}, reject(RejectUnauthorized, ReasonInvalidToken, err)
	}
}
