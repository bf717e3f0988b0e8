package dto

import (
	"time"

	"github.com/dmorenog/user-management-api/internal/domain"
)

// LoginRequest carries credentials for authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the profile plus password for a new account.
// DateOfBirth uses the 2006-01-02 layout.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DNI         string `json:"dni"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// RefreshTokenRequest carries the refresh token to exchange.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse follows the OAuth2-style shape for issued token pairs.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// NewTokenResponse maps a domain token pair to the wire shape.
func NewTokenResponse(pair *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		IssuedAt:     pair.IssuedAt,
	}
}
