package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const localsUserKey = "user_id"

// RequireUser resolves the caller's identity from the Authorization
// header. Requests without a resolvable identity are refused before
// reaching any handler; the core never reads ambient auth state.
func RequireUser(jv *JWTValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
		}
		token = strings.TrimPrefix(token, "Bearer ")
		uid, err := jv.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
		}
		c.Locals(localsUserKey, uid)
		return c.Next()
	}
}

// UserID returns the identity stored by RequireUser, or "".
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(localsUserKey).(string)
	return uid
}
