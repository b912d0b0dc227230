package api

import (
	"errors"
	"log/slog"

	"gym-booking-service/internal/service"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{service.ErrClassNotFound, fiber.StatusNotFound, "class_not_found"},
	{service.ErrClassInstanceNotFound, fiber.StatusNotFound, "class_instance_not_found"},
	{service.ErrBookingNotFound, fiber.StatusNotFound, "booking_not_found"},
	{service.ErrClassFull, fiber.StatusConflict, "class_full"},
	{service.ErrDuplicateBooking, fiber.StatusConflict, "duplicate_booking"},
	{service.ErrAlreadyCancelled, fiber.StatusConflict, "already_cancelled"},
	{service.ErrInstanceConflict, fiber.StatusConflict, "class_instance_conflict"},
	{service.ErrInvalidStateTransition, fiber.StatusConflict, "invalid_state_transition"},
	{service.ErrCancellationCutoff, fiber.StatusBadRequest, "cancellation_cutoff"},
	{service.ErrStorageUnavailable, fiber.StatusServiceUnavailable, "storage_unavailable"},
}

// handleError writes the HTTP response for a service error.
func handleError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid input",
			"code":    "validation_failed",
			"details": verr.Fields,
		})
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(fiber.Map{"error": err.Error(), "code": m.code})
		}
	}

	slog.ErrorContext(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
}
