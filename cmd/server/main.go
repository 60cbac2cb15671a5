package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/config"
	"github.com/d60-Lab/streamfan/internal/api"
	"github.com/d60-Lab/streamfan/internal/api/handler"
	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/lease"
	"github.com/d60-Lab/streamfan/internal/notify"
	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/internal/service"
	"github.com/d60-Lab/streamfan/pkg/database"
	"github.com/d60-Lab/streamfan/pkg/logger"
	"github.com/d60-Lab/streamfan/pkg/tracing"
)

// @title streamfan API
// @version 1.0
// @description Resumable post/comment fan-out service.
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	rdb := database.InitRedis(cfg)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	fc := cfg.Fanout
	senders := make(map[notify.Channel]notify.Sender, len(notify.Channels))
	for _, ch := range notify.Channels {
		senders[ch] = notify.NewThrottled(notify.LogSender{Channel: ch}, fc.SendRate, fc.SendBurst)
	}

	people := cache.NewActorCache(repository.NewActorRepository(db), rdb, cfg.Redis.CacheTTL)
	store := service.NewTaskStore(repository.NewTaskRepository(db), lease.NewRedisRegistry(rdb, cfg.Redis.LeasePrefix), fc.LeaseTTL)
	engine := service.NewFanoutEngine(db, store, people, notify.NewDispatcher(senders), fc)
	publisher := service.NewPublisher(db, engine, store)
	processor := service.NewProcessor(store, publisher, fc)
	relService := service.NewRelationshipService(db, people)

	var stopWorker func(context.Context) error
	if fc.Workers > 0 {
		stopWorker = service.NewTaskWorker(processor, fc.Workers, fc.PollInterval, fc.InvocationBudget).Start()
	}

	h := handler.NewHandler(publisher, processor, relService, fc.InvocationBudget)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), fc.InvocationBudget+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if stopWorker != nil {
		if err := stopWorker(shutdownCtx); err != nil {
			logger.Warn("worker shutdown", zap.Error(err))
		}
	}
	return nil
}
