package auth

import (
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/domain"
	apperrors "github.com/dmorenog/user-management-api/pkg/util"
)

// Issuer identifies tokens minted by this service.
const Issuer = "user-management-api"

// DefaultRole is returned when a token carries no role claim. Role
// extraction degrades gracefully; it is never the sole authorization gate.
const DefaultRole = domain.RoleUser

// TokenManager issues and validates access and refresh tokens on top of
// the codec. It is stateless: the signing key and TTLs are fixed at
// construction and never mutated.
type TokenManager struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewTokenManager builds a manager. TTL ordering (refresh > access) is
// enforced by config validation before this constructor runs.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		codec:      NewCodec(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// IssueAccessToken signs a short-lived token carrying the subject's role
// and a ROLE_-prefixed authorities claim for downstream authorization.
func (tm *TokenManager) IssueAccessToken(username string, role domain.Role) (string, time.Time, error) {
	if strings.TrimSpace(username) == "" {
		return "", time.Time{}, apperrors.NewInvalidArgument("username is required to issue a token")
	}
	if strings.TrimSpace(string(role)) == "" {
		return "", time.Time{}, apperrors.NewInvalidArgument("role is required to issue a token")
	}

	now := time.Now()
	expiresAt := now.Add(tm.accessTTL)
	claims := &Claims{
		Role:        string(role),
		Authorities: []string{"ROLE_" + string(role)},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    Issuer,
			IssuedAt:  numericDate(now),
			ExpiresAt: numericDate(expiresAt),
		},
	}

	token, err := tm.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, expiresAt, nil
}

// IssueRefreshToken signs a longer-lived token marked type=refresh. It
// carries no role claim: a refresh token never directly authorizes a
// protected resource.
func (tm *TokenManager) IssueRefreshToken(username string) (string, time.Time, error) {
	if strings.TrimSpace(username) == "" {
		return "", time.Time{}, apperrors.NewInvalidArgument("username is required to issue a refresh token")
	}

	now := time.Now()
	expiresAt := now.Add(tm.refreshTTL)
	claims := &Claims{
		TokenType: string(domain.TokenTypeRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    Issuer,
			IssuedAt:  numericDate(now),
			ExpiresAt: numericDate(expiresAt),
		},
	}

	token, err := tm.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, expiresAt, nil
}

// ValidateAccessToken reports whether the token decodes cleanly: signature
// valid, well formed, not expired. It never returns an error; the concrete
// failure reason is logged for observability.
func (tm *TokenManager) ValidateAccessToken(tokenStr string) bool {
	if strings.TrimSpace(tokenStr) == "" {
		tm.logger.Warn("token validation attempted with blank token")
		return false
	}
	if _, err := tm.codec.Decode(tokenStr); err != nil {
		tm.logger.Warn("token validation failed", zap.Error(err))
		return false
	}
	return true
}

// ValidateRefreshToken reports whether the token is valid and actually a
// refresh token. An access token presented here fails the type check.
func (tm *TokenManager) ValidateRefreshToken(tokenStr string) bool {
	if !tm.ValidateAccessToken(tokenStr) {
		return false
	}
	claims, err := tm.codec.Decode(tokenStr)
	if err != nil {
		tm.logger.Warn("refresh token validation failed", zap.Error(err))
		return false
	}
	if claims.TokenType != string(domain.TokenTypeRefresh) {
		tm.logger.Warn("refresh token validation rejected non-refresh token",
			zap.String("subject", claims.Subject))
		return false
	}
	return true
}

// ExtractUsername returns the subject claim of a valid token.
func (tm *TokenManager) ExtractUsername(tokenStr string) (string, error) {
	claims, err := tm.codec.Decode(tokenStr)
	if err != nil {
		return "", apperrors.NewUnauthorized("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", apperrors.NewUnauthorized("token carries no subject")
	}
	return claims.Subject, nil
}

// ExtractRole returns the role claim of a valid token, falling back to
// DefaultRole when the claim is missing or the token cannot be decoded.
func (tm *TokenManager) ExtractRole(tokenStr string) domain.Role {
	claims, err := tm.codec.Decode(tokenStr)
	if err != nil {
		tm.logger.Debug("role extraction fell back to default", zap.Error(err))
		return DefaultRole
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return DefaultRole
	}
	return role
}

// ExpiresAt returns the expiry of a valid token.
func (tm *TokenManager) ExpiresAt(tokenStr string) (time.Time, error) {
	claims, err := tm.codec.Decode(tokenStr)
	if err != nil {
		return time.Time{}, apperrors.NewUnauthorized("invalid token")
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, apperrors.NewUnauthorized("token carries no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// AccessTTL exposes the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}
