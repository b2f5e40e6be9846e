package logger

import (
	"io"
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLevels covers the four slog levels the service emits.
var zapLevels = map[slog.Level]zapcore.Level{
	slog.LevelDebug: zapcore.DebugLevel,
	slog.LevelInfo:  zapcore.InfoLevel,
	slog.LevelWarn:  zapcore.WarnLevel,
	slog.LevelError: zapcore.ErrorLevel,
}

func toZapLevel(lvl slog.Level) zapcore.Level {
	if z, ok := zapLevels[lvl]; ok {
		return z
	}
	if lvl < slog.LevelDebug {
		return zapcore.DebugLevel
	}
	return zapcore.ErrorLevel
}

func newZapHandler(w io.Writer, cfg Config) slog.Handler {
	lvl := cfg.level()

	var enc zapcore.Encoder
	if cfg.Env == EnvDev {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		ec.EncodeDuration = zapcore.StringDurationEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(toZapLevel(lvl)))

	// a room expiring closes every socket at once; sample the burst
	if cfg.SampleInitial >= 0 && cfg.Env == EnvProd {
		first, next := cfg.SampleInitial, cfg.SampleThereafter
		if first == 0 {
			first = 100
		}
		if next <= 0 {
			next = 10
		}
		core = zapcore.NewSamplerWithOptions(core, time.Second, first, next)
	}

	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(io.Discard))}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return slogzap.Option{Level: lvl, Logger: zap.New(core, opts...)}.NewZapHandler()
}
