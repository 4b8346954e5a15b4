package identity

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-portal/internal/domain"
	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

const identityKey = "forwarded_identity"

// Middleware accepts forwarded identity only when the gateway assertion verifies.
type Middleware struct {
	asserter *Asserter
}

// NewMiddleware constructs middleware.
func NewMiddleware(asserter *Asserter) *Middleware {
	return &Middleware{asserter: asserter}
}

// Require rejects requests without a verified forwarded identity.
func (m *Middleware) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := m.resolve(c)
		if err != nil {
			return err
		}
		if id == nil {
			return apperrors.NewUnauthenticated(apperrors.CodeMissingCredential)
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Optional attaches the identity when present and valid, and otherwise
// continues anonymously.
func (m *Middleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, err := m.resolve(c); err == nil && id != nil {
			c.Locals(identityKey, id)
		}
		return c.Next()
	}
}

func (m *Middleware) resolve(c *fiber.Ctx) (*Identity, error) {
	assertion := c.Get(HeaderAssertion)
	userID := c.Get(HeaderUserID)
	if assertion == "" && userID == "" {
		return nil, nil
	}
	if assertion == "" {
		return nil, apperrors.NewUnauthenticated(apperrors.CodeInvalidCredential)
	}
	id, err := m.asserter.Check(assertion, userID, c.Get(HeaderUserEmail), c.Get(HeaderUserRole))
	if err != nil {
		return nil, apperrors.NewUnauthenticated(apperrors.CodeInvalidCredential)
	}
	return id, nil
}

// FromContext returns the identity attached by Require or Optional.
func FromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	id, ok := val.(*Identity)
	return id, ok
}

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		id, ok := FromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated(apperrors.CodeMissingCredential)
		}
		if _, exists := allowedSet[id.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
