package api

import (
	"gym-booking-service/internal/model"
	"gym-booking-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// PaymentHandler receives gateway callbacks over HTTP. The same updates may
// also arrive on the payment.status.updated subject.
type PaymentHandler struct {
	bookingService service.BookingService
	validate       *validator.Validate
}

func NewPaymentHandler(bookingService service.BookingService, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{bookingService: bookingService, validate: validate}
}

type PaymentWebhookRequest struct {
	BookingID     uuid.UUID           `json:"booking_id" validate:"required"`
	PaymentStatus model.PaymentStatus `json:"payment_status" validate:"required,oneof=pending paid refunded"`
	PaymentID     *string             `json:"payment_id" validate:"omitempty,max=255"`
}

func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var request PaymentWebhookRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	booking, err := h.bookingService.UpdatePaymentStatus(c.UserContext(), request.BookingID, request.PaymentStatus, request.PaymentID)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(booking)
}
