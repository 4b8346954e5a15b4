package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/notification"
	"github.com/spec-kit/job-portal/internal/observability"
	"github.com/spec-kit/job-portal/internal/persistence"
	"github.com/spec-kit/job-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, "job-portal-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	var mailer notification.Mailer = notification.LogMailer{Logger: logger}
	if cfg.Notification.WebhookURL != "" {
		mailer = notification.NewWebhookMailer(cfg.Notification.WebhookURL, cfg.Jobs.Timeout())
	}

	w, err := worker.NewNotificationWorker(worker.Config{
		RedisOpts:   redis.QueueOpt(),
		Queue:       cfg.Notification.Queue,
		Concurrency: cfg.Notification.Concurrency,
		Mailer:      mailer,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		logger.Fatal("failed to build worker", zap.Error(err))
	}

	status := worker.NewStatusApp(metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notification worker started", zap.String("queue", cfg.Notification.Queue))
		return w.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("worker status listening", zap.String("addr", cfg.Notification.StatusAddr))
		return status.Listen(cfg.Notification.StatusAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		return status.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
	logger.Info("notification worker stopped")
}
