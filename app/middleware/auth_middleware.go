// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/estate-settlement/app/dto"
	"github.com/amirphl/estate-settlement/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by Authenticate
const (
	LocalUserID      = "user_id"
	LocalRole        = "role"
	LocalTokenID     = "token_id"
	LocalTokenClaims = "token_claims"
	LocalRequestID   = "request_id"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(dto.APIResponse{
		Message: message,
		Error:   []dto.ErrorDetail{{Code: code, Message: message}},
	})
}

// Authenticate validates the bearer token and stores the caller's id and role in locals
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, fiber.StatusUnauthorized, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, fiber.StatusUnauthorized, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, fiber.StatusUnauthorized, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, fiber.StatusUnauthorized, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalTokenID, claims.TokenID)
		c.Locals(LocalTokenClaims, claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals(LocalRequestID, requestID)
		}

		return c.Next()
	}
}

// RequireRole lets the request through only when Authenticate stored one of roles
func (m *AuthMiddleware) RequireRole(roles ...services.Role) fiber.Handler {
	return func(c fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(services.Role)
		if !ok {
			return unauthorized(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED")
		}
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return unauthorized(c, fiber.StatusForbidden, "Insufficient role for this operation", "FORBIDDEN")
	}
}

// RequireAdmin is RequireRole(services.RoleAdmin)
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return m.RequireRole(services.RoleAdmin)
}
