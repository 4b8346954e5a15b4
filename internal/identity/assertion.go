// Package identity carries the gateway-verified principal to downstream
// services. The X-User-* headers are only honoured together with a matching
// assertion signed by the gateway, so a caller that reaches a service
// directly cannot choose its own identity.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/domain"
)

// Forwarded identity headers.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderAssertion = "X-Identity-Assertion"
)

const audience = "job-portal-internal"

// ErrAssertion reports a missing, invalid or mismatched identity assertion.
var ErrAssertion = errors.New("identity assertion rejected")

// Headers lists every header owned by the gateway.
func Headers() []string {
	return []string{HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderAssertion}
}

// Asserter signs and checks gateway identity assertions.
type Asserter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewAsserter builds an Asserter keyed by the internal identity secret.
func NewAsserter(secret string, ttl time.Duration) *Asserter {
	if ttl <= 0 {
		ttl = time.Minute
	}
	a := &Asserter{secret: []byte(secret), ttl: ttl, now: time.Now}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	)
	return a
}

// Sign returns an assertion binding the principal's three identity fields.
func (a *Asserter) Sign(p *auth.Principal) (string, error) {
	now := a.now()
	claims := &auth.Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Check verifies the assertion and that it matches the forwarded header values exactly.
func (a *Asserter) Check(assertion, userID, email, role string) (*Identity, error) {
	parsed, err := a.parser.ParseWithClaims(assertion, &auth.Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertion, err)
	}
	claims, ok := parsed.Claims.(*auth.Claims)
	if !ok || !parsed.Valid {
		return nil, ErrAssertion
	}
	if claims.Subject != userID || claims.Email != email || string(claims.Role) != role {
		return nil, fmt.Errorf("%w: headers do not match assertion", ErrAssertion)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrAssertion)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric subject", ErrAssertion)
	}
	return &Identity{UserID: id, Email: claims.Email, Role: claims.Role}, nil
}

// Strip removes every gateway-owned header from the inbound request.
func Strip(c *fiber.Ctx) {
	for _, h := range Headers() {
		c.Request().Header.Del(h)
	}
}

// Inject writes the principal and its assertion onto the outgoing request.
func (a *Asserter) Inject(c *fiber.Ctx, p *auth.Principal) error {
	assertion, err := a.Sign(p)
	if err != nil {
		return err
	}
	c.Request().Header.Set(HeaderUserID, p.Subject)
	c.Request().Header.Set(HeaderUserEmail, p.Email)
	c.Request().Header.Set(HeaderUserRole, string(p.Role))
	c.Request().Header.Set(HeaderAssertion, assertion)
	return nil
}

// Identity is the caller as seen by a downstream service.
type Identity struct {
	UserID int64
	Email  string
	Role   domain.Role
}
