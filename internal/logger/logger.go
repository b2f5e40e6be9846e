package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a logger writing to w without touching slog.Default.
func New(w io.Writer, cfg Config) *slog.Logger {
	cfg = cfg.normalize()

	var h slog.Handler
	if cfg.Backend == BackendZap {
		h = newZapHandler(w, cfg)
	} else {
		h = newStdHandler(w, cfg)
	}
	return slog.New(h.WithAttrs(cfg.attrs()))
}

// Init installs a stdout logger as slog.Default and returns it.
func Init(cfg Config) *slog.Logger {
	l := New(os.Stdout, cfg)
	slog.SetDefault(l)
	return l
}
