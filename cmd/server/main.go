package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"task-tracker/backend/internal/audit"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/db"
	"task-tracker/backend/internal/db/migrate"
	"task-tracker/backend/internal/health"
	healthhandler "task-tracker/backend/internal/health/handler"
	identityservice "task-tracker/backend/internal/identity/service"
	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/policy/engine"
	"task-tracker/backend/internal/security"
	"task-tracker/backend/internal/server"
	"task-tracker/backend/internal/server/httpapi"
	sessionrepo "task-tracker/backend/internal/session/repository"
	taskrepo "task-tracker/backend/internal/task/repository"
	taskservice "task-tracker/backend/internal/task/service"
	"task-tracker/backend/internal/telemetry"
	telemetryotel "task-tracker/backend/internal/telemetry/otel"
	userrepo "task-tracker/backend/internal/user/repository"
)

const (
	serviceName         = "task-tracker"
	healthRefreshPeriod = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "error", false).Error(context.Background(), "config", "error", err)
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fail := func(msg string, err error) error {
		logger.Error(ctx, msg, "error", err)
		return err
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.OTelInsecure)
	if err != nil {
		return fail("otel providers", err)
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider, providers.MeterProvider)
	auditLogger := audit.NewLogger(logger, emitter)

	if cfg.DatabaseURL == "" {
		return fail("database", errors.New("DATABASE_URL is not set"))
	}
	if err := migrate.Run(cfg.DatabaseURL, migrate.DirectionUp); err != nil {
		return fail("migrate up", err)
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fail("database", err)
	}
	defer database.Close()

	sessions, rdb, err := openSessionStore(cfg)
	if err != nil {
		return fail("session store", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	tokens, err := security.NewTokenCodec(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return fail("token codec", err)
	}
	users := userrepo.NewPostgresRepository(database)
	authSvc := identityservice.NewAuthService(users, sessions, security.NewHasher(cfg.BcryptCost), tokens, identityservice.Options{
		StrictRefresh: cfg.StrictRefresh,
		Audit:         auditLogger,
		Logger:        logger,
	})

	module, err := engine.LoadPolicyFile(cfg.TaskPolicyFile)
	if err != nil {
		return fail("task policy", err)
	}
	policy, err := engine.NewOPAEvaluator(ctx, module)
	if err != nil {
		return fail("task policy", err)
	}
	taskSvc := taskservice.NewTaskService(taskrepo.NewPostgresRepository(database), policy, logger)

	checker := health.NewChecker(database, sessions, policy)
	grpcHealth := healthhandler.NewServer(checker, server.SessionServiceName)
	go grpcHealth.Run(ctx, healthRefreshPeriod)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:         authSvc,
		Tasks:        taskSvc,
		Health:       checker,
		Metrics:      httpapi.NewMetrics(),
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		CORSOrigins:  cfg.CORSOrigins(),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fail("grpc listen", err)
		}
		s := server.NewGRPCServer(server.Deps{
			Auth:   authSvc,
			Health: grpcHealth,
			Audit:  auditLogger,
			Logger: logger,
		})
		grpcSrv = s
		go func() {
			logger.Info(ctx, "grpc server listening", "addr", cfg.GRPCAddr)
			if err := s.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
	case err := <-errCh:
		logger.Error(context.Background(), "server failed", "error", err)
	}

	grpcHealth.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	// Let in-flight audit emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := providers.Shutdown(drainCtx); err != nil {
		logger.Warn(drainCtx, "otel shutdown", "error", err)
	}
	logger.Info(context.Background(), "stopped")
	return nil
}

// sessionStore is what the auth service and the health checker need from a session backend.
type sessionStore interface {
	identityservice.SessionStore
	health.StorePinger
}

// openSessionStore returns the configured backend. The redis client is returned so main can close it.
func openSessionStore(cfg *config.Config) (sessionStore, *redis.Client, error) {
	if cfg.SessionStore == config.SessionStoreMemory {
		return sessionrepo.NewMemoryStore(cfg.SessionLifetime()), nil, nil
	}
	rdb, err := sessionrepo.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	store := sessionrepo.NewRedisStore(rdb, cfg.SessionLifetime())
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, rdb, nil
}
