package gateway

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/observability"
	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

const bearerScheme = "bearer"

// Gate authenticates every inbound request before it is proxied.
type Gate struct {
	classifier *Classifier
	tokens     *auth.TokenManager
	asserter   *identity.Asserter
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewGate constructs the gate.
func NewGate(classifier *Classifier, tokens *auth.TokenManager, asserter *identity.Asserter, logger *zap.Logger, metrics *observability.Metrics) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{classifier: classifier, tokens: tokens, asserter: asserter, logger: logger, metrics: metrics}
}

// Handler returns the fiber middleware. Caller-supplied identity headers are
// always removed; they are set again only from a verified token.
func (g *Gate) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity.Strip(c)

		reqPath, err := cleanPath(c)
		if err != nil {
			return err
		}
		class := g.classifier.Classify(reqPath, c.Method())
		principal, code := g.authenticate(c.Get(fiber.HeaderAuthorization))

		switch class {
		case AlwaysOpen, ConditionallyOpen:
			if principal == nil {
				return g.forward(c, class, "anonymous")
			}
		case Authenticated:
			if principal == nil {
				return g.reject(c, class, code)
			}
		}

		if err := g.asserter.Inject(c, principal); err != nil {
			g.logger.Error("failed to sign identity assertion", zap.Error(err))
			return apperrors.NewInternalError(err)
		}
		return g.forward(c, class, "authenticated")
	}
}

// authenticate returns the principal or the code explaining why there is none.
func (g *Gate) authenticate(header string) (*auth.Principal, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, apperrors.CodeMissingCredential
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, bearerScheme) || token == "" {
		return nil, apperrors.CodeMalformedCredential
	}
	principal, err := g.tokens.Verify(token)
	switch {
	case err == nil:
		return principal, ""
	case errors.Is(err, auth.ErrMalformed):
		return nil, apperrors.CodeMalformedCredential
	default:
		return nil, apperrors.CodeInvalidCredential
	}
}

func (g *Gate) forward(c *fiber.Ctx, class Classification, outcome string) error {
	g.metrics.RecordGateDecision(class.String(), outcome)
	g.logger.Debug("request forwarded",
		zap.String("path", c.Path()),
		zap.String("classification", class.String()),
		zap.String("outcome", outcome))
	return c.Next()
}

func (g *Gate) reject(c *fiber.Ctx, class Classification, code string) error {
	g.metrics.RecordGateDecision(class.String(), strings.ToLower(code))
	g.logger.Debug("request rejected",
		zap.String("path", c.Path()),
		zap.String("code", code))
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="job-portal"`)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": "unauthorized"},
	})
}
