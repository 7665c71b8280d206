package transport

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/observability"
)

// requestIDLocalsKey matches the default ContextKey of fiber's requestid
// middleware.
const requestIDLocalsKey = "requestid"

// RequestContext copies the request id into the user context so services can
// log it through observability.WithContextLogger. Mount it after requestid.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := RequestID(c); id != "" {
			c.SetUserContext(observability.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}

func RequestID(c *fiber.Ctx) string {
	if value, ok := c.Locals(requestIDLocalsKey).(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
}
