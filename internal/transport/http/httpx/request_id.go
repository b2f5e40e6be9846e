package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID forwards a well-formed caller X-Request-ID or generates one.
// The id is stored under chi's key so middleware.GetReqID sees it too.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !printableID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, id)))
	})
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id := middleware.GetReqID(ctx)
	return id, id != ""
}

// printableID rejects empty, oversized or non-printable ids so callers
// cannot inject into log lines.
func printableID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
