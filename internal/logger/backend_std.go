package logger

import (
	"io"
	"log/slog"
)

func newStdHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.level(),
		AddSource: cfg.AddSource,
	}
	if cfg.Env == EnvDev {
		return slog.NewTextHandler(w, opts)
	}

	return slog.NewJSONHandler(w, opts)
}
