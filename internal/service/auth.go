// Package service provides authentication business logic.
//
// AuthService is the business logic layer for authentication:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordHasher
//
// KEY RESPONSIBILITIES:
//   - Register email/password accounts
//   - Check credentials and issue tokens
//   - Link GitHub logins to accounts by email
//
// LOGIN FAILURES LOOK THE SAME:
// An unknown email and a wrong password both return
// apperror.Unauthenticated("invalid credentials"). Only the server log says
// which one it was. The unknown-email path still runs one password
// verification so the two cases take about the same time.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

// MaxPasswordBytes is the longest password bcrypt can hash without truncating.
const MaxPasswordBytes = 72

const invalidCredentials = "invalid credentials"

// AuthService handles registration, login and token validation.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords auth.PasswordHasher
	logger    *slog.Logger

	// dummyHash is verified against when the email is unknown.
	dummyHash string
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords auth.PasswordHasher,
	logger *slog.Logger,
) (*AuthService, error) {
	dummy, err := passwords.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("service/auth: preparing dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// LoginResult is returned by successful logins.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
}

// Register creates an account. An email that is already registered returns
// a Conflict error.
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return emailTaken()
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		// Two registrations for one email can both pass the lookup above.
		if errors.Is(err, apperror.ErrConflict) {
			return emailTaken()
		}
		return fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.Int64("userID", user.ID))
	return nil
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
		}
		_ = s.passwords.Verify(s.dummyHash, password)
		s.logger.Info("login failed: unknown email")
		return nil, apperror.Unauthenticated(invalidCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login failed: wrong password", slog.Int64("userID", user.ID))
		} else {
			s.logger.Warn("login failed: stored hash unusable",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthenticated(invalidCredentials)
	}

	return s.issue(user)
}

// LoginWithGitHub signs in the account whose email matches the GitHub
// profile, creating it on first use. Accounts created here cannot log in
// with a password.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*LoginResult, error) {
	if gh == nil {
		return nil, errors.New("service/auth: GitHub user must not be nil")
	}
	email := normalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "GitHub account has no public email address")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		user = &model.User{Email: email, PasswordHash: model.UnusablePassword}
		err = s.users.Create(ctx, user)
		if errors.Is(err, apperror.ErrConflict) {
			user, err = s.users.GetByEmail(ctx, email)
		} else if err == nil {
			s.logger.Info("user registered via GitHub",
				slog.Int64("userID", user.ID),
				slog.String("login", gh.Login),
			)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: linking GitHub user %d: %w", gh.ID, err)
	}

	return s.issue(user)
}

// ValidateToken returns the Subject of a valid token, or an Unauthenticated error.
func (s *AuthService) ValidateToken(token string) (auth.Subject, error) {
	return s.tokens.Validate(token)
}

func (s *AuthService) issue(user *model.User) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated", slog.Int64("userID", user.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, UserID: user.ID}, nil
}

func emailTaken() error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "email is already registered",
		Field:   "email",
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
