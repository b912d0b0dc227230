package api

import (
	"time"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ClassHandler struct {
	classService    service.ClassService
	instanceService service.ClassInstanceService
	bookingService  service.BookingService
	validate        *validator.Validate
}

func NewClassHandler(classService service.ClassService, instanceService service.ClassInstanceService, bookingService service.BookingService, validate *validator.Validate) *ClassHandler {
	return &ClassHandler{
		classService:    classService,
		instanceService: instanceService,
		bookingService:  bookingService,
		validate:        validate,
	}
}

type SetClassStatusRequest struct {
	Status model.ClassStatus `json:"status" validate:"required,oneof=active inactive cancelled"`
}

type ImageUploadRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

type SetImageRequest struct {
	Key string `json:"key" validate:"required"`
}

type MaterializeRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtfield=From"`
}

func (h *ClassHandler) CreateClass(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var request model.ClassTemplate
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	class, err := h.classService.Create(c.UserContext(), actor, &request)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(class)
}

func (h *ClassHandler) UpdateClass(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var patch service.ClassPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	class, err := h.classService.Update(c.UserContext(), actor, id, patch)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(class)
}

func (h *ClassHandler) GetClass(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	class, err := h.classService.Get(c.UserContext(), actor, id)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(class)
}

func (h *ClassHandler) ListClasses(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	trainerID, err := queryUUID(c, "trainer_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.classService.List(c.UserContext(), actor, repository.ClassFilter{
		Type:      model.ClassType(c.Query("type")),
		Status:    model.ClassStatus(c.Query("status")),
		TrainerID: trainerID,
		Search:    c.Query("search"),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *ClassHandler) SetClassStatus(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request SetClassStatusRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	class, err := h.classService.SetStatus(c.UserContext(), actor, id, request.Status)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(class)
}

// DeleteClass soft-deletes a template by moving it to cancelled. Existing
// instances are left untouched.
func (h *ClassHandler) DeleteClass(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.classService.SetStatus(c.UserContext(), actor, id, model.ClassStatusCancelled); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ClassHandler) CreateImageUploadURL(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request ImageUploadRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	upload, err := h.classService.CreateImageUpload(c.UserContext(), actor, id, request.ContentType)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(upload)
}

func (h *ClassHandler) SetImage(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request SetImageRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	class, err := h.classService.SetImage(c.UserContext(), actor, id, request.Key)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(class)
}

func (h *ClassHandler) Materialize(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var request MaterializeRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := service.ValidateRequest(h.validate, &request); err != nil {
		return handleError(c, err)
	}

	created, err := h.instanceService.Materialize(c.UserContext(), id, request.From, request.To)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": created, "created": len(created)})
}

func (h *ClassHandler) ListClassBookings(c *fiber.Ctx) error {
	actor, err := GetAuthContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.bookingService.List(c.UserContext(), actor, repository.BookingFilter{
		ClassID: &id,
		Status:  model.BookingStatus(c.Query("status")),
		Page:    c.QueryInt("page", 1),
		Limit:   c.QueryInt("limit", 10),
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
