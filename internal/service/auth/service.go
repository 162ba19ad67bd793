package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/dental-verify/pkg/auth"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("too many failed attempts, try again later")
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Admin is the single dashboard account, configured rather than stored.
type Admin struct {
	Email        string
	PasswordHash string
}

type Service struct {
	admin    Admin
	hasher   security.PasswordHasher
	tokens   auth.JWTService
	failures *cache.Cache
	logger   *logger.Logger
}

func NewService(admin Admin, hasher security.PasswordHasher, tokens auth.JWTService, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		admin:    admin,
		hasher:   hasher,
		tokens:   tokens,
		failures: cache.New(lockoutDuration, lockoutDuration),
		logger:   log,
	}
}

// Login checks the credentials and issues an access token. Five failures
// for one email lock it out for fifteen minutes.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if n, ok := s.failures.Get(email); ok && n.(int) >= maxLoginAttempts {
		return nil, apperrors.Unauthorized(ErrLocked)
	}

	if s.admin.Email == "" || s.admin.PasswordHash == "" || email != strings.ToLower(s.admin.Email) {
		s.fail(email)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}
	if err := s.hasher.Compare(s.admin.PasswordHash, req.Password); err != nil {
		s.fail(email)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}
	s.failures.Delete(email)

	token, expires, err := s.tokens.GenerateAccessToken(email, email, auth.RoleAdmin)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	s.logger.Info("admin logged in", "email", email)
	return &TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// ValidateToken accepts only admin tokens.
func (s *Service) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if claims.Role != auth.RoleAdmin {
		return nil, apperrors.Forbidden(nil)
	}
	return claims, nil
}

func (s *Service) fail(email string) {
	if _, err := s.failures.IncrementInt(email, 1); err != nil {
		s.failures.Set(email, 1, cache.DefaultExpiration)
	}
	s.logger.Warn("failed admin login", "email", email)
}
