package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/screening-api/internal/utils"
)

var operatorIDClaims = []string{"sub", "operator_id", "user_id", "id"}

var roleClaims = []string{"role", "roles"}

// JWTProtected validates HMAC-signed bearer tokens and exposes the operator
// id and role to handlers as user_id and user_role locals. Tokens without an
// operator id are rejected since provider settings are resolved per operator.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(30*time.Second),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		scheme, tokenString, found := strings.Cut(authorization, " ")
		tokenString = strings.TrimSpace(tokenString)
		if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		operatorID := extractUserIDFromClaims(claims)
		if operatorID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no operator id")
		}
		c.Locals("user_id", *operatorID)
		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	for _, key := range operatorIDClaims {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := claimToUint(value); err == nil && id != 0 {
			return &id
		}
	}
	return nil
}

func claimToUint(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, errors.New("operator id must be a positive integer")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, errors.New("unsupported operator id type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range roleClaims {
		switch v := claims[key].(type) {
		case string:
			if role := canonicalRole(v); role != "" {
				return role
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && canonicalRole(s) != "" {
					return canonicalRole(s)
				}
			}
		}
	}
	return ""
}
