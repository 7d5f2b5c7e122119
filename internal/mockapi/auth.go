package mockapi

import (
	"errors"
	"strings"
	"time"

	"questline/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// MintToken signs an HS256 bearer token whose subject is userID.
func MintToken(secret, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "questline-mockapi",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthRequired validates the bearer token and stores its subject in
// Locals("userID").
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid token structure - missing subject")
		}

		c.Locals("userID", sub)
		c.SetUserContext(observability.WithUserID(c.UserContext(), sub))
		return c.Next()
	}
}

// viewerID returns the authenticated user.
func viewerID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}
