package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/ebanking-core/internal/api"
	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/config"
	"github.com/ayo6706/ebanking-core/internal/db"
	"github.com/ayo6706/ebanking-core/internal/identifier"
	"github.com/ayo6706/ebanking-core/internal/idempotency"
	"github.com/ayo6706/ebanking-core/internal/notification"
	"github.com/ayo6706/ebanking-core/internal/observability"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/ayo6706/ebanking-core/internal/security"
	"github.com/ayo6706/ebanking-core/internal/service"
	"github.com/ayo6706/ebanking-core/internal/statement"
	"github.com/ayo6706/ebanking-core/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, task dispatcher and integrity worker,
// blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("database schema ensured")
	}

	// A nil *redis.Client must not reach the Cmdable interfaces.
	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		cache = redisClient
	} else {
		logger.Info("redis disabled, idempotency served from postgres only")
	}

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	defer closeNotifier()

	dispatcher := async.NewDispatcher(cfg.TaskWorkers, cfg.TaskQueueSize).WithTimeout(cfg.TaskTimeout)
	stopDispatcher := dispatcher.Run()

	store := repository.NewStore(pool)
	ids := identifier.New(nil)
	verifier := security.NewBcryptVerifier(cfg.PinHashCost)
	policy := security.PinPolicy{Length: cfg.PinLength}

	accountSvc := service.NewAccountService(store, ids, verifier, policy).WithTasks(dispatcher)
	transferSvc := service.NewTransferService(store, ids, verifier).WithNotifier(notifier, dispatcher)
	historySvc := service.NewHistoryService(store, cfg.MaxPageSize).
		WithRenderer(statement.NewPDFRenderer("Account Statement")).
		WithLocation(cfg.StatementLocation)
	idemStore := idempotency.NewStore(cache, store.Keys(), cfg.IdempotencyTTL)

	integrityWorker := worker.NewIntegrityWorker(service.NewIntegrityService(store)).WithSchedule(cfg.IntegritySchedule)
	stopWorker, err := integrityWorker.Run(ctx)
	if err != nil {
		stopDispatcher()
		return fmt.Errorf("start integrity worker: %w", err)
	}
	stopPurge, err := worker.NewPurgeWorker(idemStore).WithSchedule(cfg.PurgeSchedule).Run(ctx)
	if err != nil {
		stopWorker()
		stopDispatcher()
		return fmt.Errorf("start idempotency purge worker: %w", err)
	}

	router := api.NewRouter(cfg, logger, store, cache, idemStore, api.Services{
		Accounts:  accountSvc,
		Transfers: transferSvc,
		History:   historySvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping workers")
	stopPurge()
	stopWorker()

	// Drain queued alerts and account openings before the pool closes.
	logger.Info("draining background tasks")
	stopDispatcher()

	logger.Info("shutdown complete")
	return runErr
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (service.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("amqp disabled, balance alerts are logged only")
		return notification.NewLogNotifier(logger), func() {}, nil
	}
	publisher, err := notification.Dial(cfg.AMQPURL, cfg.NotificationExchange)
	if err != nil {
		return nil, nil, err
	}
	return publisher, publisher.Close, nil
}

// newLogger builds the production JSON logger. Unknown levels fall back to info.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	atomic, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		atomic = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = atomic
	return cfg.Build(zap.Fields(zap.String("service", "ebanking-core")))
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
