package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/transport"
)

func toHTTPError(err error) error {
	var unknownStatus *domain.UnknownStatusError

	switch {
	case errors.As(err, &unknownStatus):
		return transport.NewDetailedError(fiber.StatusBadRequest, err.Error(), fiber.Map{
			"validStatuses": unknownStatus.Valid,
		})
	case errors.Is(err, domain.ErrUnknownStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPinRequired),
		errors.Is(err, domain.ErrPinMissing):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPinMismatch):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrPinAttemptsExceeded):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}

func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrValidation, name)
	}
	return id, nil
}

func parseRecipientID(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Query("recipientId"))
	if raw == "" {
		return 0, fmt.Errorf("%w: recipientId is required", domain.ErrValidation)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: recipientId must be a positive integer", domain.ErrValidation)
	}
	return id, nil
}
