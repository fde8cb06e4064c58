package service

import (
	"context"
	"log/slog"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/metrics"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository"
)

// UserService is the administrative CRUD surface over the User Store.
// Every method emits PublicUser: hashes never leave this layer.
type UserService struct {
	users   repository.UserRepository
	hasher  Hasher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewUserService creates a UserService. m may be nil.
func NewUserService(users repository.UserRepository, hasher Hasher, m *metrics.Metrics, logger *slog.Logger) *UserService {
	return &UserService{
		users:   users,
		hasher:  hasher,
		metrics: m,
		logger:  logger,
	}
}

// CreateUserInput is the admin create form. Password is optional: an account
// created without one cannot log in until it gets one.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
}

func (s *UserService) List(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, *users[i].Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// Create stores a new account.
//
// A supplied password goes through the hasher, so its length rules apply.
// Hashing happens before the store is touched.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.PublicUser, error) {
	if in.Name == "" || in.Email == "" {
		return nil, apperror.ValidationFailed("", "Name and email are required")
	}

	user := &model.User{Name: in.Name, Email: in.Email}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation(metrics.OpCreate)
	s.logger.Info("user created", slog.Int64("userID", user.ID))
	return user.Public(), nil
}

// Update applies a partial change. Empty strings count as "not provided".
func (s *UserService) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.PublicUser, error) {
	if patch.Name != nil && *patch.Name == "" {
		patch.Name = nil
	}
	if patch.Email != nil && *patch.Email == "" {
		patch.Email = nil
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation(metrics.OpUpdate)
	s.logger.Info("user updated", slog.Int64("userID", id))
	return user.Public(), nil
}

func (s *UserService) Delete(ctx context.Context, id int64) (*model.PublicUser, error) {
	user, err := s.users.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation(metrics.OpDelete)
	s.logger.Info("user deleted", slog.Int64("userID", id))
	return user.Public(), nil
}
