package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/domain"
)

const principalKey = "auth_principal"

const bearerPrefix = "Bearer "

// Principal represents the authenticated caller for the duration of one
// request. It is attached by the gate and discarded at request end.
type Principal struct {
	Username    string
	Role        domain.Role
	Authorities []string
	User        *domain.User
}

// AccountDirectory is the lookup-by-username contract the gate needs from
// user storage.
type AccountDirectory interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Gate is the per-request authentication filter. It turns a bearer token
// into a Principal, or lets the request pass through anonymously. It never
// rejects a request itself; denial is the authorization policy's job.
type Gate struct {
	tokens      *TokenManager
	directory   AccountDirectory
	publicPaths []string
	logger      *zap.Logger
}

// NewGate constructs the gate. publicPaths are prefixes for which token
// processing is skipped entirely.
func NewGate(tokens *TokenManager, directory AccountDirectory, publicPaths []string, logger *zap.Logger) *Gate {
	return &Gate{tokens: tokens, directory: directory, publicPaths: publicPaths, logger: logger}
}

// Handle runs once per incoming request. Whatever happens during token
// processing, the chain continues: a malformed token must never break the
// request, it only means no identity gets attached.
func (g *Gate) Handle(c *fiber.Ctx) error {
	if g.isPublicPath(c.Path()) {
		return c.Next()
	}

	if token := extractBearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		g.authenticate(c, token)
	}

	return c.Next()
}

// authenticate validates the token and attaches a Principal. All failures,
// including panics from collaborators, degrade to "no identity attached".
func (g *Gate) authenticate(c *fiber.Ctx, token string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic during request authentication",
				zap.Any("panic", r), zap.String("path", c.Path()))
		}
	}()

	if !g.tokens.ValidateAccessToken(token) {
		return
	}

	username, err := g.tokens.ExtractUsername(token)
	if err != nil {
		g.logger.Warn("authenticated token carried no usable subject",
			zap.String("path", c.Path()), zap.Error(err))
		return
	}

	user, err := g.directory.GetByUsername(c.UserContext(), username)
	if err != nil {
		g.logger.Warn("account lookup failed during authentication",
			zap.String("username", username), zap.String("path", c.Path()), zap.Error(err))
		return
	}

	c.Locals(principalKey, &Principal{
		Username:    user.Username,
		Role:        user.Role,
		Authorities: []string{"ROLE_" + string(user.Role)},
		User:        user,
	})
	g.logger.Debug("request authenticated", zap.String("username", username))
}

func (g *Gate) isPublicPath(path string) bool {
	for _, prefix := range g.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractBearerToken returns the token portion of an Authorization header.
// The prefix match is case-sensitive with a single space; anything else is
// treated as "no token", not as an error.
func extractBearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	token := header[len(bearerPrefix):]
	if strings.TrimSpace(token) == "" {
		return ""
	}
	return token
}

// PrincipalFromContext retrieves the authenticated entity, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
