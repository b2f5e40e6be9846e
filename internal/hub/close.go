package hub

// Application close codes (4000-4999 is the private range of RFC 6455).
const (
	CloseSessionExpired = 4000
	CloseRejected       = 4003

	CloseGoingAway = 1001
)

const (
	ReasonSessionExpired = "session already expired"
	ReasonShutdown       = "server shutting down"
)

// RejectedReason is the close reason sent when admission fails after upgrade.
func RejectedReason(detail string) string {
	return "admission rejected: " + detail
}
