package middleware

import (
	"crypto/subtle"
	"strings"

	"textpesa/internal/config"
	"textpesa/internal/pkg/jwt"
	"textpesa/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware guards the ops console routes with a bearer JWT
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		authHeader := c.Get("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			accessToken = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// GatewayAuth guards the gateway polling routes with a static API key in the
// X-API-Key header. An empty configured key disables the check (dev only).
func GatewayAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Gateway.APIKey == "" {
			return c.Next()
		}

		key := c.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Gateway.APIKey)) != 1 {
			return response.Unauthorized(c, "Invalid API key")
		}
		return c.Next()
	}
}
