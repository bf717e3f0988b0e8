package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/auth"
	"github.com/dmorenog/user-management-api/internal/config"
	"github.com/dmorenog/user-management-api/internal/domain"
	"github.com/dmorenog/user-management-api/internal/repository"
	apperrors "github.com/dmorenog/user-management-api/pkg/util"
)

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Username    string
	Email       string
	DNI         string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Password    string
	Role        string
}

// AuthService coordinates registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service. The token manager receives the
// signing key explicitly; nothing here reads global state.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL(), logger),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Register creates a new account after duplicate and role checks.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if strings.TrimSpace(input.Username) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewInvalidArgument("username and password are required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, apperrors.NewInvalidArgument("email is required")
	}

	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, apperrors.NewValidationError("invalid role, allowed values: USER, ADMIN", map[string]any{
			"role": input.Role,
		})
	}

	if taken, err := s.users.ExistsByUsername(ctx, input.Username); err != nil {
		return nil, apperrors.MapError(err)
	} else if taken {
		s.logger.Warn("registration rejected, username taken", zap.String("username", input.Username))
		return nil, apperrors.NewConflict("username already in use", nil)
	}
	if taken, err := s.users.ExistsByEmail(ctx, input.Email); err != nil {
		return nil, apperrors.MapError(err)
	} else if taken {
		s.logger.Warn("registration rejected, email taken", zap.String("username", input.Username))
		return nil, apperrors.NewConflict("email already in use", nil)
	}
	if taken, err := s.users.ExistsByDNI(ctx, input.DNI); err != nil {
		return nil, apperrors.MapError(err)
	} else if taken {
		s.logger.Warn("registration rejected, dni taken", zap.String("username", input.Username))
		return nil, apperrors.NewConflict("dni already registered", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		DNI:          input.DNI,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		DateOfBirth:  input.DateOfBirth,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("user registered",
		zap.String("id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))
	return user, nil
}

// Login verifies credentials and issues a token pair. An unknown username
// and a wrong password produce the same error; the response must not leak
// which factor failed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, apperrors.NewInvalidArgument("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// Only a missing account is a credential failure. A storage outage
		// is an internal error; reporting it as 401 would be a lie.
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("login failed, unknown username", zap.String("username", username))
			return nil, apperrors.NewInvalidCredentials()
		}
		s.logger.Error("login failed, account lookup", zap.String("username", username), zap.Error(err))
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("login failed, password mismatch", zap.String("username", username))
		return nil, apperrors.NewInvalidCredentials()
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login succeeded", zap.String("username", username))
	return pair, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair. The old
// tokens are not revoked; they age out naturally.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.NewInvalidToken("refresh token is required")
	}

	if !s.tokens.ValidateRefreshToken(refreshToken) {
		s.logger.Warn("refresh rejected, token invalid or not a refresh token")
		return nil, apperrors.NewInvalidToken("refresh token is invalid or expired")
	}

	username, err := s.tokens.ExtractUsername(refreshToken)
	if err != nil {
		return nil, apperrors.NewInvalidToken("refresh token is invalid or expired")
	}

	// The account must still exist; a deleted user cannot mint new tokens.
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("refresh rejected, account gone", zap.String("username", username))
		return nil, apperrors.NewInvalidToken("account for refresh token no longer exists")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("token pair refreshed", zap.String("username", username))
	return pair, nil
}

func (s *AuthService) issuePair(user *domain.User) (*domain.TokenPair, error) {
	accessToken, _, err := s.tokens.IssueAccessToken(user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.tokens.IssueRefreshToken(user.Username)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		IssuedAt:     time.Now(),
	}, nil
}

// TokenManager exposes the underlying token manager for the gate.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}
