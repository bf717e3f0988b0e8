package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dmorenog/user-management-api/internal/domain"
	apperrors "github.com/dmorenog/user-management-api/pkg/util"
)

// Rule maps a path pattern to an access requirement. A pattern ending in
// "/*" matches by prefix, anything else matches exactly.
type Rule struct {
	Pattern string
	Public  bool
	// Roles that may pass. Empty with Public=false means any
	// authenticated caller.
	Roles []domain.Role
}

// Policy is an ordered rule table evaluated top to bottom, first match
// wins. Order is load-bearing: narrow patterns must precede the broader
// patterns they are nested under, or the broad rule shadows them. A
// request matching no rule requires authentication but no specific role.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a policy from an ordered rule slice.
func NewPolicy(rules []Rule) *Policy {
	return &Policy{rules: rules}
}

// DefaultRules is the route table for this service. /api/users/me must
// stay above the /api/users/* admin wildcard it is nested under.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/health/live", Public: true},
		{Pattern: "/health/ready", Public: true},
		{Pattern: "/auth/*", Public: true},
		{Pattern: "/api/users/me", Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}},
		{Pattern: "/api/users", Roles: []domain.Role{domain.RoleAdmin}},
		{Pattern: "/api/users/*", Roles: []domain.Role{domain.RoleAdmin}},
	}
}

// Evaluate decides whether the caller may reach the path. A nil error
// means allowed; otherwise the error carries the 401/403 distinction.
func (p *Policy) Evaluate(path string, principal *Principal) error {
	for _, rule := range p.rules {
		if !matches(rule.Pattern, path) {
			continue
		}
		if rule.Public {
			return nil
		}
		if principal == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(rule.Roles) == 0 {
			return nil
		}
		for _, role := range rule.Roles {
			if principal.Role == role {
				return nil
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}

	// No rule matched: deny unless authenticated.
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

// Enforce adapts the policy into a Fiber middleware running after the
// gate.
func (p *Policy) Enforce() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		if err := p.Evaluate(c.Path(), principal); err != nil {
			return err
		}
		return c.Next()
	}
}

func matches(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(path, prefix+"/") || path == prefix
	}
	return path == pattern
}
