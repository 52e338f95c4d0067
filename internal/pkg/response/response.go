package response

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the error JSON shape shared by every endpoint.
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageGeneric is returned for failures whose cause is not the caller's fault.
const MessageGeneric = "Something went wrong"

// JSON sends a 200 OK with data as the body.
func JSON(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(data)
}

// Error sends {"error": message} with the given status.
func Error(c *fiber.Ctx, message string, statusCode int) error {
	return c.Status(statusCode).JSON(ErrorBody{Error: message})
}

// BadRequest sends 400 with the error shape. Auth failures use it too.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusBadRequest)
}

// NotFound sends 404 with the error shape.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusNotFound)
}

// Internal sends 500 with the generic message. The cause is logged by the caller.
func Internal(c *fiber.Ctx) error {
	return Error(c, MessageGeneric, fiber.StatusInternalServerError)
}
