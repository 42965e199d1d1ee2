package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// SecurityHeaders applies OWASP recommended security headers
func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:        "no-referrer",
	})
}

// RequestID propagates X-Request-ID or assigns a fresh UUID.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("request_id", requestID)
		return c.Next()
	}
}

// OperationLimiter caps how often one client may start operations. Each
// start supersedes the previous operation, so bursts are never useful.
func OperationLimiter(perWindow int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perWindow,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many operations started, try again later",
			})
		},
	})
}
