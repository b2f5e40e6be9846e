package security

import (
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// ParseBearer returns the token of a "Bearer <token>" header value, or "".
func ParseBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// BearerFromRequest reads the Authorization header and falls back to the
// access_token query parameter, which browsers need for WebSocket
// handshakes since they cannot set headers.
func BearerFromRequest(r *http.Request) string {
	if tok := ParseBearer(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
