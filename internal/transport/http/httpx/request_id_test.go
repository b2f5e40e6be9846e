package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	cases := []struct {
		name, in string
		keep     bool
	}{
		{"caller id kept", "abc-123", true},
		{"empty generated", "", false},
		{"too long replaced", strings.Repeat("x", maxRequestIDLen+1), false},
		{"control chars replaced", "abc\nforged=1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.in != "" {
				req.Header.Set(HeaderRequestID, tc.in)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			require.Equal(t, seen, rec.Header().Get(HeaderRequestID))
			if tc.keep {
				require.Equal(t, tc.in, seen)
			} else {
				require.NotEqual(t, tc.in, seen)
			}
		})
	}
}

func TestFail_ServerErrorsHideDetail(t *testing.T) {
	errInternalForTest := errors.New("dial tcp 10.0.0.3:5432: connection refused")
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	Fail(rec, req, errInternalForTest)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), errInternalForTest.Error())
}
