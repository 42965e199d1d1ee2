package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the operator UI origins to call the API. An empty list
// falls back to local development origins.
func CORS(origins []string) fiber.Handler {
	allow := strings.Join(origins, ",")
	if allow == "" {
		allow = "http://localhost:3000,http://localhost:8080,http://127.0.0.1:3000"
	}
	return cors.New(cors.Config{
		AllowOrigins: allow,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
		// Never combined with credentials; "*" stays valid.
		AllowCredentials: false,
		ExposeHeaders:    "Content-Length,X-Request-ID",
		MaxAge:           3600,
	})
}
