package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/job-portal/internal/api/http"
	"github.com/spec-kit/job-portal/internal/api/http/handlers"
	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/client"
	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/events"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/lifecycle"
	"github.com/spec-kit/job-portal/internal/notification"
	"github.com/spec-kit/job-portal/internal/observability"
	"github.com/spec-kit/job-portal/internal/persistence"
	"github.com/spec-kit/job-portal/internal/repository"
	"github.com/spec-kit/job-portal/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		applicationRepo repository.ApplicationRepository
		userRepo        repository.UserRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		applicationRepo = repository.NewApplicationRepository(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		applicationRepo = repository.NewMemoryApplicationRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	queue := notification.NewQueueClient(redis.QueueOpt(), cfg.Notification.Queue)
	defer queue.Close() //nolint:errcheck

	dispatcher := events.NewAsyncDispatcher(logger, cfg.Lifecycle.DispatchBuffer, cfg.Lifecycle.DispatchWorkers)
	notification.NewService(dispatcher, queue, logger, metrics, cfg.Notification).RegisterHandlers()

	policy, err := lifecycle.ParsePolicy(cfg.Lifecycle.TerminalStatuses)
	if err != nil {
		logger.Fatal("invalid terminal statuses", zap.Error(err))
	}

	engine := lifecycle.NewEngine(lifecycle.Dependencies{
		Applications: applicationRepo,
		Jobs:         client.NewJobsClient(cfg.Jobs.BaseURL, cfg.Jobs.Timeout()),
		Dispatcher:   dispatcher,
		Policy:       policy,
		Logger:       logger,
		Metrics:      metrics,
	})

	tokenMgr := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(userRepo, tokenMgr, cfg.Auth.BcryptCost, logger)
	asserter := identity.NewAsserter(cfg.Auth.IdentitySecret, cfg.Auth.IdentityTTL())

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ErrorHandler:          httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:         handlers.NewAuthHandler(authService),
		Applications: handlers.NewApplicationsHandler(engine, authService),
		Identity:     identity.NewMiddleware(asserter),
		Metrics:      metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		err := app.ShutdownWithTimeout(10 * time.Second)
		dispatcher.Close()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api stopped", zap.Error(err))
	}
}
