package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/job-portal/internal/domain"
)

// Verification failures. Callers match with errors.Is.
var (
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
)

// Principal is the verified identity carried by a token.
type Principal struct {
	Subject string
	Email   string
	Role    domain.Role
}

// Claims describes the JWT payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customises a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the wall clock used for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	tm := &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return tm.now() }),
		jwt.WithExpirationRequired(),
	)
	return tm
}

// Issue signs a token for the subject. A non-positive ttl falls back to the manager default.
func (tm *TokenManager) Issue(subject, email string, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: unknown role %q", role)
	}
	if ttl <= 0 {
		ttl = tm.ttl
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks shape, expiry and signature, in that order, and returns the principal.
func (tm *TokenManager) Verify(tokenStr string) (*Principal, error) {
	unverified := &Claims{}
	if _, _, err := tm.parser.ParseUnverified(tokenStr, unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := unverified.validateShape(); err != nil {
		return nil, err
	}
	if !tm.now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	parsed, err := tm.parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	return &Principal{Subject: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func (c *Claims) validateShape() error {
	switch {
	case strings.TrimSpace(c.Subject) == "":
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	case strings.TrimSpace(c.Email) == "":
		return fmt.Errorf("%w: missing email", ErrMalformed)
	case !c.Role.Valid():
		return fmt.Errorf("%w: unknown role", ErrMalformed)
	case c.ExpiresAt == nil:
		return fmt.Errorf("%w: missing expiry", ErrMalformed)
	}
	return nil
}
