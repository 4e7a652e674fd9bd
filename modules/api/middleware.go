package api

import (
	"errors"
	"strings"

	"github.com/averyowl/chat/modules/auth"
	"github.com/gofiber/fiber/v2"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*auth.Claims, error)
}

const claimsLocal = "claims"

// AuthMiddleware rejects requests without a valid bearer token and stores
// the verified claims in the request locals.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error: "missing authorization token",
			})
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token has expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: msg})
		}

		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// extractToken pulls the token from the Authorization header, accepting
// both "Bearer <token>" and a bare token.
func extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

// claimsFrom returns the verified claims stored by AuthMiddleware.
func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsLocal).(*auth.Claims)
	return claims
}
