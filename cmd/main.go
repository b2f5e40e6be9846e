package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/session-service/config"
	"github.com/cwrk-planet/session-service/internal/cache"
	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/hub"
	"github.com/cwrk-planet/session-service/internal/logger"
	"github.com/cwrk-planet/session-service/internal/postgres"
	"github.com/cwrk-planet/session-service/internal/security"
	"github.com/cwrk-planet/session-service/internal/service"
	grpcx "github.com/cwrk-planet/session-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/session-service/internal/transport/http"
	"github.com/cwrk-planet/session-service/internal/transport/ws"

	"github.com/redis/go-redis/v9"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(cfg.LoggerConfig())
	shutdownTracing := logger.InitTracing()
	defer func() { _ = shutdownTracing(context.Background()) }()
	slog.Info("starting session-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	roomRepo := postgres.NewRoomRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)
	chatRepo := postgres.NewChatRepository(pool)

	// --- redis (optional room cache for admission) ---
	var admissionRooms service.RoomStore = roomRepo
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, room cache will fall through", "addr", cfg.Redis.Addr, "err", err)
		}
		admissionRooms = cache.NewRoomCache(roomRepo, rdb, cfg.Redis.RoomTTL)
	}

	// --- credentials ---
	validator, err := newValidator(cfg.Security.JWT)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	// --- sessions ---
	clk := clock.Real()
	rooms := hub.NewRegistry()
	listeners := hub.NewRegistry()

	scheduler := service.NewTimeoutScheduler(roomRepo, bookingRepo, rooms, clk, service.SchedulerConfig{
		Workers: cfg.Session.TimeoutWorkers,
	})
	gate := service.NewAdmissionGate(validator, admissionRooms, bookingRepo, clk)
	chat := service.NewChatService(chatRepo, rooms, clk)
	notifier := service.NewConfirmationNotifier(listeners, clk)
	decisions := service.NewDecisionService(bookingRepo, roomRepo, notifier, scheduler)
	admin := service.NewAdmin(rooms, listeners, scheduler, decisions)

	if _, err := scheduler.Recover(ctx, roomRepo); err != nil {
		slog.Error("timeout recovery failed", "err", err)
	}
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go scheduler.RunSweeper(sweepCtx, cfg.Session.SweepInterval)

	// --- HTTP ---
	wsServer := ws.NewServer(gate, chat, scheduler, rooms, listeners, cfg.Session.WSOptions())
	router := httpx.NewRouter(httpx.Deps{
		WS:             wsServer,
		Admin:          httpx.NewAdminHandler(admin),
		Validator:      validator,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcServer := grpcx.NewServer(validator)
	health := grpcx.Register(grpcServer, grpcx.NewAdminServer(admin))

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	health.Shutdown()
	grpcServer.GracefulStop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}

	stopSweep()
	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.Session.DrainTimeout)
	defer cancelDrain()
	if err := scheduler.Shutdown(ctxDrain); err != nil {
		slog.Warn("scheduler shutdown", "err", err)
	}
	n := listeners.CloseAll(hub.CloseGoingAway, hub.ReasonShutdown)
	slog.Info("stopped", "closed_listeners", n)
}

func newValidator(c config.JWT) (*security.JWTValidator, error) {
	switch c.Alg {
	case "HS256":
		return security.NewHS256Validator([]byte(c.Secret), c.Issuer, c.Audience, c.ClockSkew), nil
	case "RS256":
		pub, err := security.LoadRSAPublicKeyFromPEM(c.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		return security.NewRS256Validator(pub, c.Issuer, c.Audience, c.ClockSkew), nil
	default:
		return nil, fmt.Errorf("unsupported alg %q", c.Alg)
	}
}
