// Package gateway is the edge process: it classifies each request, verifies
// bearer tokens where needed and proxies to the owning service with the
// caller's identity attached.
package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/observability"
	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

// Dependencies bundles what the edge app needs.
type Dependencies struct {
	Config   config.GatewayConfig
	Env      string
	Tokens   *auth.TokenManager
	Asserter *identity.Asserter
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// NewApp assembles the gateway fiber app.
func NewApp(deps Dependencies) (*fiber.App, error) {
	methods := []string{http.MethodGet}
	if deps.Config.ConditionalHead {
		methods = append(methods, http.MethodHead)
	}
	classifier, err := NewClassifier(deps.Config.OpenPrefixes, deps.Config.OpenPatterns, methods...)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "job-portal-gateway",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger, deps.Metrics),
	})

	app.Use(requestid.New())
	app.Use(observability.RequestLogger(deps.Logger, deps.Metrics))
	if deps.Config.SecureHeaders {
		app.Use(adaptor.HTTPMiddleware(secure.New(secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			IsDevelopment:      deps.Env == "development",
		}).Handler))
	}
	if deps.Config.RateLimitPerMinute > 0 {
		app.Use(adaptor.HTTPMiddleware(httprate.Limit(
			deps.Config.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		)))
	}

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": "gateway"})
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready", "upstreams": len(deps.Config.Upstreams)})
	})
	app.Get("/metrics", deps.Metrics.Handler())

	gate := NewGate(classifier, deps.Tokens, deps.Asserter, deps.Logger, deps.Metrics)
	upstreams := NewProxy(deps.Config.Upstreams, deps.Config.ProxyTimeout(), deps.Logger)
	app.Use(gate.Handler(), upstreams.Handler())
	return app, nil
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"` + apperrors.CodeRateLimited + `","message":"too many requests"}}`))
}

func errorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var domainErr *apperrors.DomainError
		if fe, ok := err.(*fiber.Error); ok {
			domainErr = apperrors.NewDomainError(apperrors.CodeNotFound, fe.Message, fe.Code, nil)
			if fe.Code != fiber.StatusNotFound {
				domainErr.Code = apperrors.CodeInternal
			}
		} else {
			domainErr = apperrors.ToDomainError(err)
		}
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed", zap.Error(domainErr))
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}})
	}
}
