package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"budgetme-notifications/internal/service/auth"
)

const (
	ClaimsContextKey = "claims"
	UserIDContextKey = "user_id"
)

// AuthRequired validates the bearer token and stores its claims on the
// request. EventSource clients cannot set headers, so the stream route may pass
// the token as ?access_token= instead.
func AuthRequired(authService auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			return Unauthorized("Invalid or expired token")
		}

		c.Locals(ClaimsContextKey, claims)
		c.Locals(UserIDContextKey, claims.UserID)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", Unauthorized("Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", Unauthorized("Invalid authorization header format")
	}
	return parts[1], nil
}

func GetClaims(c *fiber.Ctx) *auth.Claims {
	claims, ok := c.Locals(ClaimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetUserID returns the authenticated user. Service tokens without a subject
// are rejected here since every user-scoped route needs an id.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, Unauthorized("User not authenticated")
	}
	return userID, nil
}
