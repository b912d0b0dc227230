package api

import (
	"context"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type BookingHandler struct {
	bookingService service.BookingService
	validate       *validator.Validate
}

func NewBookingHandler(bookingService service.BookingService, validate *validator.Validate) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, validate: validate}
}

type CancelBookingRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var request service.CreateBookingInput
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	booking, err := h.bookingService.CreateBooking(c.UserContext(), actor, request)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(booking)
}

func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request CancelBookingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return badRequest(c, "Cannot parse JSON")
		}
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	booking, err := h.bookingService.CancelBooking(c.UserContext(), actor, id, request.Reason)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(booking)
}

func (h *BookingHandler) MarkCompleted(c *fiber.Ctx) error {
	return h.withBooking(c, h.bookingService.MarkCompleted)
}

func (h *BookingHandler) MarkNoShow(c *fiber.Ctx) error {
	return h.withBooking(c, h.bookingService.MarkNoShow)
}

func (h *BookingHandler) CheckIn(c *fiber.Ctx) error {
	return h.withBooking(c, h.bookingService.CheckIn)
}

func (h *BookingHandler) CheckOut(c *fiber.Ctx) error {
	return h.withBooking(c, h.bookingService.CheckOut)
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	return h.withBooking(c, h.bookingService.Get)
}

type bookingAction func(ctx context.Context, actor service.Actor, bookingID uuid.UUID) (*model.Booking, error)

func (h *BookingHandler) withBooking(c *fiber.Ctx, action bookingAction) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	booking, err := action(c.UserContext(), actor, id)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(booking)
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var filter repository.BookingFilter
	if filter.UserID, err = queryUUID(c, "user_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.ClassID, err = queryUUID(c, "class_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.ClassInstanceID, err = queryUUID(c, "class_instance_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.From, err = queryTime(c, "from"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return badRequest(c, err.Error())
	}
	filter.Status = model.BookingStatus(c.Query("status"))
	filter.Page = c.QueryInt("page", 1)
	filter.Limit = c.QueryInt("limit", 10)

	result, err := h.bookingService.List(c.UserContext(), actor, filter)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *BookingHandler) GetStats(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var filter repository.StatsFilter
	if filter.ClassID, err = queryUUID(c, "class_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.From, err = queryTime(c, "from"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.bookingService.Stats(c.UserContext(), actor, filter)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}
