package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/service"
	httpmw "github.com/cwrk-planet/session-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/session-service/internal/transport/http/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type AdminAPI interface {
	Stats() service.Stats
	Room(roomID string) service.RoomStatus
	ScheduleTimeout(ctx context.Context, roomID string) service.ScheduleOutcome
	CancelTimeout(roomID string) bool
	Approve(ctx context.Context, bookingID string) (*domain.Booking, error)
	Reject(ctx context.Context, bookingID, reason string) (*domain.Booking, error)
}

type AdminHandler struct {
	admin    AdminAPI
	validate *validator.Validate
}

func NewAdminHandler(admin AdminAPI) *AdminHandler {
	return &AdminHandler{admin: admin, validate: validator.New()}
}

// GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, h.admin.Stats())
}

// GET /admin/rooms/{roomId}
func (h *AdminHandler) Room(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, h.admin.Room(chi.URLParam(r, "roomId")))
}

// POST /admin/rooms/{roomId}/timeout
func (h *AdminHandler) ScheduleTimeout(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	out := h.admin.ScheduleTimeout(r.Context(), roomID)
	if out == service.ScheduleRoomMissing {
		httpx.Fail(w, r, domain.ErrRoomNotFound)
		return
	}
	httpx.OK(w, map[string]any{"roomId": roomID, "outcome": out})
}

// DELETE /admin/rooms/{roomId}/timeout
func (h *AdminHandler) CancelTimeout(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	cancelled := h.admin.CancelTimeout(roomID)
	if p, ok := httpmw.PrincipalFromCtx(r.Context()); ok {
		slog.Info("admin cancel timeout", "room_id", roomID, "by", p.ParticipantID, "cancelled", cancelled)
	}
	httpx.OK(w, map[string]any{"roomId": roomID, "cancelled": cancelled})
}

// POST /admin/bookings/{bookingId}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	b, err := h.admin.Approve(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.OK(w, toBookingItem(b))
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// POST /admin/bookings/{bookingId}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Fail(w, r, fmt.Errorf("%w: invalid json", httpx.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, r, fmt.Errorf("%w: %v", httpx.ErrInvalidInput, err))
		return
	}

	b, err := h.admin.Reject(r.Context(), chi.URLParam(r, "bookingId"), req.Reason)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.OK(w, toBookingItem(b))
}

type bookingItem struct {
	ID     string               `json:"id"`
	Status domain.BookingStatus `json:"status"`
	RoomID *string              `json:"roomId,omitempty"`
	Reason *string              `json:"reason,omitempty"`
}

func toBookingItem(b *domain.Booking) bookingItem {
	return bookingItem{ID: b.ID, Status: b.Status, RoomID: b.RoomID, Reason: b.Reason}
}
