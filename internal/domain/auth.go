package domain

import "time"

// TokenType discriminates access tokens from refresh tokens. Access
// tokens carry no type claim; refresh tokens are marked explicitly.
type TokenType string

const TokenTypeRefresh TokenType = "refresh"

// TokenPair is the result of a successful login or refresh. Tokens are
// immutable once issued; a refresh mints a brand-new pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	IssuedAt     time.Time
}
