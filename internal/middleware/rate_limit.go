package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/screening-api/internal/utils"
)

// RateLimit throttles an endpoint group per operator, falling back to the
// client IP for requests without an operator id.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return identifier + ":" + operatorKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many scoring requests")
		},
	})
}

func operatorKey(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok && id != 0 {
		return "op:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}
