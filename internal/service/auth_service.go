package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/repository"
	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

// ErrEmailTaken is returned when registering an address that already has an account.
var ErrEmailTaken = apperrors.NewConflict("email is already registered", nil)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Role        domain.Role
	CompanyName string
	PhoneNumber string
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(users repository.UserRepository, tokenMgr *auth.TokenManager, bcryptCost int, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, tokenMgr: tokenMgr, bcryptCost: bcryptCost, logger: logger}
}

// Register creates a new account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": in.Role})
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
	}
	if in.Role == domain.RoleEmployer {
		user.CompanyName = strings.TrimSpace(in.CompanyName)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthenticated(apperrors.CodeInvalidCredential)
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated(apperrors.CodeInvalidCredential)
	}
	return s.issue(user)
}

// Me returns the account of the current user.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	return user, err
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.Issue(strconv.FormatInt(user.ID, 10), user.Email, user.Role, 0)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
