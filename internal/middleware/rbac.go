package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/screening-api/internal/utils"
)

// RequireRole admits operators whose token role is one of roles. Requests
// that carry no role at all are treated as unauthenticated.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := canonicalRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		value, _ := c.Locals("user_role").(string)
		role := canonicalRole(value)
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "operator role missing")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "operator role not permitted")
		}
		return c.Next()
	}
}

func canonicalRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
