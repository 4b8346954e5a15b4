package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-portal/internal/api/http/handlers"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Applications *handlers.ApplicationsHandler
	Identity     *identity.Middleware
	Metrics      *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.Identity.Require(), cfg.Auth.Me)

	apps := app.Group("/api/applications", cfg.Identity.Require())
	apps.Post("/", identity.RequireRole(domain.RoleJobSeeker), cfg.Applications.Apply)
	apps.Get("/my-applications", cfg.Applications.Mine)
	apps.Get("/employer/applications", identity.RequireRole(domain.RoleEmployer), cfg.Applications.ForEmployer)
	apps.Get("/job/:jobId", cfg.Applications.ForJob)
	apps.Get("/status/:status", cfg.Applications.ByStatus)
	apps.Get("/check/:jobId", cfg.Applications.Check)
	apps.Get("/:id", cfg.Applications.Get)
	apps.Put("/:id", cfg.Applications.Update)
	apps.Put("/:id/status", cfg.Applications.UpdateStatus)
	apps.Delete("/:id/withdraw", cfg.Applications.Withdraw)
}
