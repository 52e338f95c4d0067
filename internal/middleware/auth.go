package middleware

import (
	"fmt"
	"strings"

	"listing-site-generator/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const userLocal = "user"

const (
	msgNoAuthorization = "Authorization key not provided"
	msgInvalidToken    = "Invalid authorization token"
)

// RequireBearer verifies "Authorization: Bearer <jwt>" against the identity
// provider's RSA public key and stores the token subject as the caller's user id.
// Missing or invalid tokens get 400, matching the existing clients.
func RequireBearer(publicKeyPEM string) (fiber.Handler, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.BadRequest(c, msgNoAuthorization)
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[1] == "" {
			return response.BadRequest(c, msgInvalidToken)
		}

		token, err := parser.Parse(parts[1], func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			log.Debug().Str("trace_id", GetTraceID(c)).Err(err).Msg("auth: token rejected")
			return response.BadRequest(c, msgInvalidToken)
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return response.BadRequest(c, msgInvalidToken)
		}

		c.Locals(userLocal, sub)
		return c.Next()
	}, nil
}

// GetUserID returns the authenticated subject ("" when the route is public).
func GetUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userLocal).(string)
	return id
}
