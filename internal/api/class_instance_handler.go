package api

import (
	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ClassInstanceHandler struct {
	instanceService service.ClassInstanceService
	validate        *validator.Validate
}

func NewClassInstanceHandler(instanceService service.ClassInstanceService, validate *validator.Validate) *ClassInstanceHandler {
	return &ClassInstanceHandler{instanceService: instanceService, validate: validate}
}

type SetInstanceStatusRequest struct {
	Status model.InstanceStatus `json:"status" validate:"required,oneof=scheduled ongoing completed cancelled"`
	Reason string               `json:"reason" validate:"max=500"`
}

func (h *ClassInstanceHandler) CreateInstance(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var request service.CreateInstanceInput
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	instance, err := h.instanceService.Create(c.UserContext(), actor, request)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

// GetInstance returns the roster, capacity and status snapshot of one instance.
func (h *ClassInstanceHandler) GetInstance(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.instanceService.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":            instance,
		"available_spots": instance.AvailableSpots(),
	})
}

func (h *ClassInstanceHandler) ListInstances(c *fiber.Ctx) error {
	classID, err := queryUUID(c, "class_id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return badRequest(c, err.Error())
	}

	instances, err := h.instanceService.List(c.UserContext(), repository.InstanceFilter{
		ClassID: classID,
		Status:  model.InstanceStatus(c.Query("status")),
		From:    from,
		To:      to,
		Limit:   c.QueryInt("limit", 100),
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": instances})
}

func (h *ClassInstanceHandler) SetInstanceStatus(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request SetInstanceStatusRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	instance, err := h.instanceService.SetStatus(c.UserContext(), actor, id, request.Status, request.Reason)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(instance)
}
