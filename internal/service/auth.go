// Package service holds the business rules of the user directory.
//
// AuthService sits between the HTTP handlers and the store/hasher:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository
//	                   ↘ Hasher (bcrypt)
//	                   ↘ SessionHandle (per-request session)
//
// WHAT THIS LAYER DOES NOT DO:
//   - It does NOT set cookies or redirect (HTTP concerns)
//   - It does NOT pick status codes; it returns apperror kinds
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/metrics"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository"
)

// Hasher is the part of auth.PasswordService the services need.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	VerifyDummy(plaintext string) bool
}

// SessionHandle is the per-request session as the services see it.
// *session.Handle satisfies it.
type SessionHandle interface {
	UserID() int64
	Establish(ctx context.Context, userID int64, userName string) error
	Destroy(ctx context.Context) error
}

// errInvalidCredentials is shared by the unknown-email and wrong-password
// paths so the two are indistinguishable to the caller.
var errInvalidCredentials = apperror.Unauthorized("Invalid email or password")

// AuthService handles registration, login, logout and "who am I".
type AuthService struct {
	users   repository.UserRepository
	hasher  Hasher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuthService creates an AuthService. m may be nil.
func NewAuthService(users repository.UserRepository, hasher Hasher, m *metrics.Metrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		hasher:  hasher,
		metrics: m,
		logger:  logger,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates an account and logs the caller in.
//
// Checks run in this order, each a ValidationError:
//  1. all four fields present
//  2. password == confirmation
//  3. password long enough
//  4. email not taken
//
// The bcrypt hash is computed before the store is touched, so the slow part
// never runs under the store lock. The store re-checks uniqueness atomically
// at insert time; the early check only gives a fast answer.
func (s *AuthService) Register(ctx context.Context, sess SessionHandle, in RegisterInput) (*model.PublicUser, error) {
	user, err := s.register(ctx, in)
	if err != nil {
		s.metrics.RecordRegistration(outcomeOf(err))
		return nil, err
	}

	if err := sess.Establish(ctx, user.ID, user.Name); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		// Roll the account back so the caller can simply retry.
		if _, derr := s.users.Delete(ctx, user.ID); derr != nil {
			s.logger.Error("failed to remove account after session failure",
				slog.Int64("userID", user.ID),
				slog.Any("error", derr),
			)
		}
		return nil, fmt.Errorf("service/auth: establishing session for user %d: %w", user.ID, err)
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	s.logger.Info("user registered", slog.Int64("userID", user.ID))
	return user.Public(), nil
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, apperror.ValidationFailed("", "All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperror.ValidationFailed("confirmPassword", "Passwords do not match")
	}
	if utf8.RuneCountInString(in.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "Password must be at least 6 characters long")
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperror.ValidationFailed("email", "Email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and establishes a session.
//
// An unknown email and a wrong password produce the same error, and both
// pay for one bcrypt comparison. Only the logs tell them apart.
func (s *AuthService) Login(ctx context.Context, sess SessionHandle, email, password string) (*model.PublicUser, error) {
	if email == "" || password == "" {
		s.metrics.RecordLogin(metrics.OutcomeInvalid)
		return nil, apperror.ValidationFailed("", "Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.metrics.RecordLogin(metrics.OutcomeError)
			return nil, fmt.Errorf("service/auth: looking up email: %w", err)
		}
		s.hasher.VerifyDummy(password)
		s.metrics.RecordLogin(metrics.OutcomeUnknownEmail)
		s.logger.Debug("login rejected", slog.String("reason", "unknown_email"))
		return nil, errInvalidCredentials
	}

	if !user.HasPassword() {
		// Accounts created through the API without a password cannot log in.
		s.hasher.VerifyDummy(password)
		s.metrics.RecordLogin(metrics.OutcomeBadPassword)
		s.logger.Warn("login rejected",
			slog.String("reason", "no_password"),
			slog.Int64("userID", user.ID),
		)
		return nil, errInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordLogin(metrics.OutcomeBadPassword)
		s.logger.Warn("login rejected",
			slog.String("reason", "bad_password"),
			slog.Int64("userID", user.ID),
		)
		return nil, errInvalidCredentials
	}

	if err := sess.Establish(ctx, user.ID, user.Name); err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("service/auth: establishing session for user %d: %w", user.ID, err)
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return user.Public(), nil
}

// Logout destroys the session. It succeeds for anonymous callers too.
func (s *AuthService) Logout(ctx context.Context, sess SessionHandle) error {
	userID := sess.UserID()
	if err := sess.Destroy(ctx); err != nil {
		return fmt.Errorf("service/auth: destroying session: %w", err)
	}

	if userID != 0 {
		s.metrics.RecordLogout()
		s.logger.Info("user logged out", slog.Int64("userID", userID))
	}
	return nil
}

// CurrentUser returns the logged-in user.
//
// A session pointing at a deleted account is dangling: it is destroyed and
// the caller gets NotFound. The next request is then plainly anonymous.
func (s *AuthService) CurrentUser(ctx context.Context, sess SessionHandle) (*model.PublicUser, error) {
	userID := sess.UserID()
	if userID == 0 {
		return nil, apperror.Unauthorized("Not authenticated")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: loading user %d: %w", userID, err)
		}
		s.logger.Warn("dangling session destroyed", slog.Int64("userID", userID))
		if derr := sess.Destroy(ctx); derr != nil {
			s.logger.Error("failed to destroy dangling session", slog.Any("error", derr))
		}
		return nil, err
	}

	return user.Public(), nil
}

// outcomeOf maps an error to a metrics outcome label.
func outcomeOf(err error) string {
	if errors.Is(err, apperror.ErrValidation) {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
