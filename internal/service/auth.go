// Package service holds the business rules between the HTTP handlers and
// the repository:
//
//	handler (HTTP) → service (rules) → repository (SQL)
//
// Services depend on repository.UserRepository, never on a concrete store,
// so tests run against in-memory fakes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/auth"
	"github.com/sakif/usuarios-api/internal/model"
	"github.com/sakif/usuarios-api/internal/repository"
)

// AuthService turns bearer tokens into users and users into tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords model.PasswordHasher
	ttl       time.Duration
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. ttl is the lifetime of tokens issued
// by Login; zero issues tokens without expiry.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords model.PasswordHasher,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		ttl:       ttl,
		logger:    logger,
	}
}

// compile-time check that *AuthService can back the bearer middleware
var _ auth.Authenticator = (*AuthService)(nil)

// Validate returns the user a token belongs to, or nil. Every failure is
// treated the same way: bad format, wrong algorithm, bad signature, expiry,
// a malformed subject, an unknown user and a store error all yield nil.
func (s *AuthService) Validate(ctx context.Context, token string) *model.User {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil
	}

	subject := claims.UserUUID()
	if !looksLikeUUID(subject) {
		s.logger.Debug("token subject is not a UUID")
		return nil
	}

	user, err := s.users.FindByUUID(ctx, subject)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("loading token subject", "uuid", subject, "error", err)
		}
		return nil
	}
	return user
}

// Login checks a username and password and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil, apperror.Unauthorized("invalid credentials")
		}
		return "", nil, err
	}

	if !user.CheckPassword(password, s.passwords) {
		return "", nil, apperror.Unauthorized("invalid credentials")
	}
	if !user.Active() {
		return "", nil, apperror.Forbidden("account is inactive")
	}

	token, err := s.tokens.Generate(user.UUID(), s.ttl)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("token issued", slog.String("uuid", user.UUID()), slog.String("username", user.Username()))
	return token, user, nil
}

// looksLikeUUID requires the canonical 36-character form: hex digits and
// hyphens only, and parseable as a UUID.
func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for _, c := range s {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex && c != '-' {
			return false
		}
	}
	_, err := uuid.Parse(s)
	return err == nil
}
