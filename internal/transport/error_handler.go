package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DetailedError is a fiber error whose response body carries extra fields
// next to "error".
type DetailedError struct {
	Code    int
	Message string
	Fields  fiber.Map
}

func NewDetailedError(code int, message string, fields fiber.Map) *DetailedError {
	return &DetailedError{Code: code, Message: message, Fields: fields}
}

func (e *DetailedError) Error() string {
	return e.Message
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		body := fiber.Map{}

		var (
			fiberErr    *fiber.Error
			detailedErr *DetailedError
		)
		switch {
		case errors.As(err, &detailedErr):
			code = detailedErr.Code
			for key, value := range detailedErr.Fields {
				body[key] = value
			}
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.String("requestId", RequestID(c)),
				zap.Error(err),
			)
			message = "internal server error"
		} else {
			logger.Info("request rejected",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.String("requestId", RequestID(c)),
				zap.Error(err),
			)
		}

		body["error"] = message
		return c.Status(code).JSON(body)
	}
}
