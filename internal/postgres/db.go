package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/session-service/internal/logger"
)

// Config carries the pool tunables. Zero values leave the pgx default.
type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string

	// SlowQuery logs statements slower than this at warn level; 0 disables.
	SlowQuery time.Duration
	// ConnectAttempts bounds the startup ping loop (default 5).
	ConnectAttempts int
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	setIf(&pc.MaxConns, c.MaxConns)
	setIf(&pc.MinConns, c.MinConns)
	setIf(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setIf(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setIf(&pc.HealthCheckPeriod, c.HealthCheckPeriod)

	if c.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = c.ApplicationName
	}
	if c.SlowQuery > 0 {
		pc.ConnConfig.Tracer = &slowQueryTracer{threshold: c.SlowQuery, now: time.Now}
	}
	return pc, nil
}

func setIf[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// NewPool opens the pool and waits until the database answers a ping. The
// database may come up after the service, so pings are retried with a
// doubling delay until ConnectAttempts is used up or ctx ends.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := 200 * time.Millisecond
	for i := 1; ; i++ {
		err = Ping(ctx, pool)
		if err == nil {
			return pool, nil
		}
		if i == attempts {
			break
		}
		slog.Warn("postgres: ping failed, retrying", "attempt", i, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	pool.Close()
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", attempts, err)
}

func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return pool.Ping(ctx)
}

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

// slowQueryTracer implements pgx.QueryTracer.
type slowQueryTracer struct {
	threshold time.Duration
	now       func() time.Time
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), sql: data.SQL})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	took := t.now().Sub(st.at)
	if took < t.threshold {
		return
	}

	args := []any{"took", took, "sql", st.sql, "rows", data.CommandTag.RowsAffected()}
	if data.Err != nil {
		args = append(args, "err", data.Err)
	}
	args = append(args, logger.Args(logger.AttrsFromCtx(ctx))...)
	slog.WarnContext(ctx, "postgres: slow query", args...)
}
