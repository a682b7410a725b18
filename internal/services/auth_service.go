package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"questbudget/internal/auth"
	"questbudget/internal/core"
	"questbudget/internal/storage"
)

// ErrInvalidCredentials is returned for both an unknown email and a
// wrong password, so login failures do not reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService handles signup and login.
type AuthService struct {
	repo   *storage.Repository
	issuer *auth.TokenIssuer
}

func NewAuthService(repo *storage.Repository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{repo: repo, issuer: issuer}
}

// Signup registers a new user with default settings and returns an
// access token.
func (s *AuthService) Signup(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", core.Validationf("invalid email address")
	}
	if len(password) < 8 {
		return "", core.Validationf("password must be at least 8 characters")
	}

	if _, err := s.repo.Queries().GetUserByEmail(ctx, email); err == nil {
		return "", core.Validationf("email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("check existing user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	var user core.User
	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		user, err = q.CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}
		return q.CreateSettings(ctx, core.DefaultSettings(user.ID))
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return s.issuer.Issue(user.ID, user.Email)
}

// Login verifies credentials and returns an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.Queries().GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.issuer.Issue(user.ID, user.Email)
}
