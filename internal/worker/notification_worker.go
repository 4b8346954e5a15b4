package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/notification"
	"github.com/spec-kit/job-portal/internal/observability"
)

// NotificationWorker wraps the asynq server that drains the email queue.
type NotificationWorker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	mailer  notification.Mailer
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Config collects dependencies required to bootstrap the worker.
type Config struct {
	RedisOpts   asynq.RedisClientOpt
	Queue       string
	Concurrency int
	Mailer      notification.Mailer
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewNotificationWorker constructs the worker and registers its handlers.
func NewNotificationWorker(cfg Config) (*NotificationWorker, error) {
	if cfg.Mailer == nil {
		return nil, errors.New("worker: mailer required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	w := &NotificationWorker{
		mailer:  cfg.Mailer,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		mux:     asynq.NewServeMux(),
	}
	w.server = asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      cfg.Logger.Sugar(),
	})
	w.mux.HandleFunc(notification.TaskTypeEmail, w.HandleEmail)
	return w, nil
}

// HandleEmail delivers one queued email. Undecodable payloads are not retried.
func (w *NotificationWorker) HandleEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := notification.DecodeEmailTask(t)
	if err != nil {
		w.logger.Error("dropping email task", zap.Error(err))
		w.metrics.RecordNotification(notification.TaskTypeEmail, "invalid")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.mailer.Send(ctx, payload); err != nil {
		w.logger.Warn("email delivery failed",
			zap.String("to", payload.To),
			zap.Int64("application_id", payload.ApplicationID),
			zap.Error(err))
		w.metrics.RecordNotification(payload.EventType, "retry")
		return err
	}
	w.metrics.RecordNotification(payload.EventType, "delivered")
	return nil
}

// Run processes tasks until ctx is cancelled. Signal handling is left to the
// caller; cancellation is the only stop path.
func (w *NotificationWorker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// NewStatusApp serves liveness and the worker's metrics registry.
func NewStatusApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "job-portal-worker", DisableStartupMessage: true})
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": "worker"})
	})
	app.Get("/metrics", metrics.Handler())
	return app
}
