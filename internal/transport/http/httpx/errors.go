package httpx

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/security"
)

var ErrInvalidInput = errors.New("invalid input")

func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBookingState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, security.ErrMissingToken),
		errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrTokenExpired),
		errors.Is(err, security.ErrInvalidIssuer),
		errors.Is(err, security.ErrInvalidAudience),
		errors.Is(err, security.ErrInvalidSubject):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
