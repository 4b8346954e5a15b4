package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/gateway"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, "job-portal-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := gateway.NewApp(gateway.Dependencies{
		Config:   cfg.Gateway,
		Env:      cfg.App.Env,
		Tokens:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		Asserter: identity.NewAsserter(cfg.Auth.IdentitySecret, cfg.Auth.IdentityTTL()),
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
	})
	if err != nil {
		logger.Fatal("failed to build gateway", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway listening", zap.String("addr", cfg.Gateway.Addr()), zap.Int("upstreams", len(cfg.Gateway.Upstreams)))
		return app.Listen(cfg.Gateway.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
	}
}
