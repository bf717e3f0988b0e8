package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/auth"
	"github.com/dmorenog/user-management-api/internal/domain"
	"github.com/dmorenog/user-management-api/internal/repository"
	apperrors "github.com/dmorenog/user-management-api/pkg/util"
)

// UpdateUserInput carries optional profile changes. Username and DNI are
// immutable; only provided fields are applied.
type UpdateUserInput struct {
	Email       *string
	FirstName   *string
	LastName    *string
	DateOfBirth *time.Time
}

// UserService handles account CRUD and enforces the at-least-one-admin
// invariant.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, bcryptCost int, logger *zap.Logger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, logger: logger}
}

// GetByID fetches a single account.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, apperrors.NewInvalidArgument("user id is required")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetByUsername fetches the account behind an authenticated principal.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, apperrors.NewInvalidArgument("username is required")
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns a page of accounts plus the total count.
func (s *UserService) List(ctx context.Context, page, size int) ([]*domain.User, int64, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	users, total, err := s.users.List(ctx, size, page*size)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return users, total, nil
}

// Update applies a partial profile update.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	if id == "" {
		return nil, apperrors.NewInvalidArgument("user id is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("update of missing user attempted", zap.String("id", id))
		return nil, apperrors.MapError(err)
	}

	if input.Email != nil && *input.Email != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, *input.Email)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if taken {
			return nil, apperrors.NewConflict("email already in use", nil)
		}
		user.Email = *input.Email
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.DateOfBirth != nil {
		user.DateOfBirth = *input.DateOfBirth
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user updated", zap.String("id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Delete removes an account. Removing the last remaining admin is refused
// so the system always keeps at least one ADMIN account.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewInvalidArgument("user id is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("delete of missing user attempted", zap.String("id", id))
		return apperrors.MapError(err)
	}

	if user.Role == domain.RoleAdmin {
		admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return apperrors.MapError(err)
		}
		if admins <= 1 {
			s.logger.Warn("refused to delete last admin", zap.String("username", user.Username))
			return apperrors.NewConflict("cannot delete the last admin account", nil)
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("user deleted", zap.String("id", id), zap.String("username", user.Username))
	return nil
}

// SeedDevAccounts creates a default admin and regular user for
// development environments. Existing accounts are left alone.
func (s *UserService) SeedDevAccounts(ctx context.Context) error {
	seeds := []struct {
		user     domain.User
		password string
	}{
		{
			user: domain.User{
				Username:    "admin",
				Email:       "admin@userapi.com",
				DNI:         "12345678",
				FirstName:   "Admin",
				LastName:    "System",
				DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
				Role:        domain.RoleAdmin,
			},
			password: "Admin123!",
		},
		{
			user: domain.User{
				Username:    "user",
				Email:       "user@userapi.com",
				DNI:         "87654321",
				FirstName:   "John",
				LastName:    "Doe",
				DateOfBirth: time.Date(1995, 5, 15, 0, 0, 0, 0, time.UTC),
				Role:        domain.RoleUser,
			},
			password: "User123!",
		},
	}

	for _, seed := range seeds {
		exists, err := s.users.ExistsByUsername(ctx, seed.user.Username)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		hash, err := auth.HashPassword(seed.password, s.bcryptCost)
		if err != nil {
			return err
		}
		seed.user.PasswordHash = hash
		if err := s.users.Create(ctx, &seed.user); err != nil {
			return err
		}
		s.logger.Info("seeded dev account",
			zap.String("username", seed.user.Username),
			zap.String("role", string(seed.user.Role)))
	}
	return nil
}
