package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{"error": envelope{"message": msg}})
}

// Fail writes err with the status StatusOf picks for it.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		reqID, _ := RequestIDFrom(r.Context())
		slog.Error("request failed", "req_id", reqID, "path", r.URL.Path, "err", err)
		Error(w, status, http.StatusText(status))
		return
	}
	Error(w, status, err.Error())
}
