package service

import (
	"encoding/json"
	"log/slog"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/hub"
)

const (
	approvedMessage = "Your booking has been approved"
	rejectedMessage = "Your booking has been rejected"
)

// ConfirmationNotifier pushes booking decisions to whoever is listening on
// the booking's confirmation channel. Nothing is queued for late listeners.
type ConfirmationNotifier struct {
	conns *hub.Registry
	clock clock.Clock
	log   *slog.Logger
}

func NewConfirmationNotifier(conns *hub.Registry, c clock.Clock) *ConfirmationNotifier {
	if c == nil {
		c = clock.Real()
	}
	return &ConfirmationNotifier{
		conns: conns,
		clock: c,
		log:   slog.Default().With("component", "confirmation_notifier"),
	}
}

func (n *ConfirmationNotifier) NotifyApproved(bookingID string) int {
	return n.notify(domain.ConfirmationMessage{
		Type:      domain.ConfirmationApproved,
		BookingID: bookingID,
		Message:   approvedMessage,
		Timestamp: n.clock.Now(),
	})
}

// NotifyRejected sends the rejection; reason, when set, replaces the
// default message text.
func (n *ConfirmationNotifier) NotifyRejected(bookingID, reason string) int {
	msg := rejectedMessage
	if reason != "" {
		msg = rejectedMessage + ": " + reason
	}
	return n.notify(domain.ConfirmationMessage{
		Type:      domain.ConfirmationRejected,
		BookingID: bookingID,
		Message:   msg,
		Timestamp: n.clock.Now(),
	})
}

func (n *ConfirmationNotifier) notify(m domain.ConfirmationMessage) int {
	targets := n.conns.Snapshot(m.BookingID)
	if len(targets) == 0 {
		n.log.Debug("no listeners, confirmation dropped", "booking_id", m.BookingID, "type", m.Type)
		return 0
	}

	payload, err := json.Marshal(m)
	if err != nil {
		n.log.Error("encode confirmation", "booking_id", m.BookingID, "err", err)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if !c.Open() {
			n.conns.Remove(m.BookingID, c)
			continue
		}
		if err := c.Send(payload); err != nil {
			n.log.Warn("confirmation send failed, pruning", "booking_id", m.BookingID, "conn_id", c.ID(), "err", err)
			n.conns.Remove(m.BookingID, c)
			continue
		}
		delivered++
	}
	n.log.Info("confirmation sent", "booking_id", m.BookingID, "type", m.Type, "delivered", delivered)
	return delivered
}
