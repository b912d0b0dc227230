package api

import (
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type DeviceTokenHandler struct {
	repo     repository.DeviceTokenRepository
	validate *validator.Validate
}

func NewDeviceTokenHandler(repo repository.DeviceTokenRepository, validate *validator.Validate) *DeviceTokenHandler {
	return &DeviceTokenHandler{repo: repo, validate: validate}
}

type DeviceTokenRequest struct {
	DeviceToken string `json:"device_token" validate:"required,max=255"`
}

func (h *DeviceTokenHandler) Register(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var request DeviceTokenRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	if _, err := h.repo.Register(c.UserContext(), actor.UserID, request.DeviceToken); err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Device token registered successfully"})
}

func (h *DeviceTokenHandler) Delete(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var request DeviceTokenRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	if err := h.repo.Delete(c.UserContext(), actor.UserID, request.DeviceToken); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
