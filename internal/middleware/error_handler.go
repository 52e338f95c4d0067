package middleware

import (
	"errors"

	"listing-site-generator/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Fiber errors keep their code and
// message; anything else is logged and reported as a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Message, fe.Code)
	}
	log.Error().Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Err(err).Msg("unhandled error")
	return response.Internal(c)
}
