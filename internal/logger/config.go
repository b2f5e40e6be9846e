package logger

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Backend string

const (
	BackendStd Backend = "std" // text in dev, JSON elsewhere
	BackendZap Backend = "zap"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// Config describes one process logger. Service, Version and InstanceID end
// up on every record.
type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // empty picks std for dev, zap otherwise
	Debug   bool

	// Zap sampling per second; SampleInitial < 0 turns sampling off.
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}

// DetectEnv reads SESSION_LOGGING_ENV, falling back to APP_ENV.
func DetectEnv() Env {
	if v, ok := os.LookupEnv("SESSION_LOGGING_ENV"); ok && v != "" {
		return ParseEnv(v)
	}
	return ParseEnv(os.Getenv("APP_ENV"))
}

func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}

func (c Config) normalize() Config {
	if c.Env == "" {
		c.Env = DetectEnv()
	}
	if c.Service == "" {
		c.Service = "session-service"
	}
	if c.InstanceID == "" {
		host, _ := os.Hostname()
		c.InstanceID = host + "-" + uuid.NewString()[:8]
	}
	if c.Backend == "" {
		c.Backend = BackendZap
		if c.Env == EnvDev {
			c.Backend = BackendStd
		}
	}
	return c
}

func (c Config) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("service", c.Service),
		slog.String("env", string(c.Env)),
		slog.String("version", c.Version),
		slog.String("instance_id", c.InstanceID),
		slog.String("go", runtime.Version()),
		slog.Time("started_at", time.Now().UTC()),
	}
}
