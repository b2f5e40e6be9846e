package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/session-service/internal/logger"
	"github.com/cwrk-planet/session-service/internal/postgres"
	"github.com/cwrk-planet/session-service/internal/transport/ws"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SESSION_HTTP_ADDR.
const EnvPrefix = "SESSION"

type HTTP struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
}

type GRPC struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Logging mirrors logger.Config; env is dev|stage|prod, backend std|zap.
type Logging struct {
	Env       string `yaml:"env"`
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Level     string `yaml:"level"`
	Backend   string `yaml:"backend" validate:"omitempty,oneof=std zap"`
	AddSource bool   `yaml:"addSource" split_words:"true"`
	Debug     bool   `yaml:"debug"`
}

type Postgres struct {
	DSN               string        `yaml:"dsn" validate:"required"`
	MaxConns          int32         `yaml:"maxConns" split_words:"true" validate:"gte=0"`
	MinConns          int32         `yaml:"minConns" split_words:"true" validate:"gte=0"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" split_words:"true"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" split_words:"true"`
	ApplicationName   string        `yaml:"applicationName" split_words:"true"`
	SlowQuery         time.Duration `yaml:"slowQuery" split_words:"true"`
	ConnectAttempts   int           `yaml:"connectAttempts" split_words:"true" validate:"gte=0"`
}

func (p Postgres) ToPGConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
		SlowQuery:         p.SlowQuery,
		ConnectAttempts:   p.ConnectAttempts,
	}
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	RoomTTL  time.Duration `yaml:"roomTTL" split_words:"true"`
}

type JWT struct {
	Alg           string        `yaml:"alg" validate:"oneof=RS256 HS256"`
	PublicKeyPath string        `yaml:"publicKeyPath" split_words:"true" validate:"required_if=Alg RS256"`
	Secret        string        `yaml:"secret" validate:"required_if=Alg HS256"`
	Issuer        string        `yaml:"issuer" validate:"required"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew" split_words:"true" validate:"gte=0,lte=1m"`
}

type Security struct {
	JWT JWT `yaml:"jwt"`
}

type Session struct {
	TimeoutWorkers int           `yaml:"timeoutWorkers" split_words:"true" validate:"gte=1,lte=64"`
	SweepInterval  time.Duration `yaml:"sweepInterval" split_words:"true" validate:"gte=1s"`
	DrainTimeout   time.Duration `yaml:"drainTimeout" split_words:"true" validate:"gte=0"`
	SendBuffer     int           `yaml:"sendBuffer" split_words:"true" validate:"gte=1"`
	WriteWait      time.Duration `yaml:"writeWait" split_words:"true"`
	PongWait       time.Duration `yaml:"pongWait" split_words:"true"`
	MaxMessageSize int64         `yaml:"maxMessageSize" split_words:"true" validate:"gte=0"`
	MessageRate    float64       `yaml:"messageRate" split_words:"true" validate:"gte=0"`
	MessageBurst   int           `yaml:"messageBurst" split_words:"true" validate:"gte=0"`
}

func (s Session) WSOptions() ws.Options {
	return ws.Options{
		WriteWait:      s.WriteWait,
		PongWait:       s.PongWait,
		MaxMessageSize: s.MaxMessageSize,
		SendBuffer:     s.SendBuffer,
		MessageRate:    s.MessageRate,
		MessageBurst:   s.MessageBurst,
	}
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Security Security `yaml:"security"`
	Session  Session  `yaml:"session"`
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		Service:   c.Logging.Service,
		Version:   c.Logging.Version,
		Level:     logger.ParseLevel(c.Logging.Level),
		Env:       logger.ParseEnv(c.Logging.Env),
		Backend:   logger.Backend(c.Logging.Backend),
		Debug:     c.Logging.Debug,
		AddSource: c.Logging.AddSource,
	}
}

// LoadConfig reads the YAML file at CONFIG_PATH (./config/config.yaml by
// default), applies SESSION_* environment overrides (a .env file is loaded
// first when present), fills defaults and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes plus environment overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "session-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Redis.RoomTTL <= 0 {
		c.Redis.RoomTTL = 5 * time.Minute
	}
	if c.Security.JWT.Alg == "" {
		c.Security.JWT.Alg = "RS256"
	}
	if c.Session.TimeoutWorkers == 0 {
		c.Session.TimeoutWorkers = 5
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = time.Minute
	}
	if c.Session.DrainTimeout == 0 {
		c.Session.DrainTimeout = 10 * time.Second
	}
	if c.Session.SendBuffer == 0 {
		c.Session.SendBuffer = 64
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
