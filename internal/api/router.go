package api

import (
	"time"

	"gym-booking-service/internal/jwt"
	"gym-booking-service/internal/model"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Classes      *ClassHandler
	Instances    *ClassInstanceHandler
	Bookings     *BookingHandler
	Payments     *PaymentHandler
	DeviceTokens *DeviceTokenHandler
}

type RouterConfig struct {
	Tokens               *jwt.Manager
	InternalSharedSecret string
	BookingRateMax       int
	BookingRateWindow    time.Duration
}

func SetupRoutes(app *fiber.App, h Handlers, cfg RouterConfig) {
	v1 := app.Group("/v1")

	internal := v1.Group("/internal", InternalAuthMiddleware(cfg.InternalSharedSecret))
	internal.Post("/payments/webhook", h.Payments.Webhook)

	auth := AuthMiddleware(cfg.Tokens)
	privileged := RequireRoles(model.RoleTrainer, model.RoleAdmin)

	classes := v1.Group("/classes", auth)
	classes.Get("/", h.Classes.ListClasses)
	classes.Get("/:id", h.Classes.GetClass)
	classes.Get("/:id/bookings", privileged, h.Classes.ListClassBookings)
	classes.Post("/", privileged, h.Classes.CreateClass)
	classes.Patch("/:id", privileged, h.Classes.UpdateClass)
	classes.Patch("/:id/status", privileged, h.Classes.SetClassStatus)
	classes.Delete("/:id", privileged, h.Classes.DeleteClass)
	classes.Post("/:id/image/upload-url", privileged, h.Classes.CreateImageUploadURL)
	classes.Put("/:id/image", privileged, h.Classes.SetImage)
	classes.Post("/:id/materialize", privileged, h.Classes.Materialize)

	instances := v1.Group("/class-instances", auth)
	instances.Get("/", h.Instances.ListInstances)
	instances.Get("/:id", h.Instances.GetInstance)
	instances.Post("/", privileged, h.Instances.CreateInstance)
	instances.Patch("/:id/status", privileged, h.Instances.SetInstanceStatus)

	rateMax, rateWindow := cfg.BookingRateMax, cfg.BookingRateWindow
	if rateMax <= 0 {
		rateMax = 30
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	bookings := v1.Group("/bookings", auth)
	bookings.Get("/", h.Bookings.ListBookings)
	bookings.Get("/stats", h.Bookings.GetStats)
	bookings.Get("/:id", h.Bookings.GetBooking)
	bookings.Post("/", BookingRateLimiter(rateMax, rateWindow), h.Bookings.CreateBooking)
	bookings.Post("/:id/cancel", h.Bookings.CancelBooking)
	bookings.Post("/:id/check-in", h.Bookings.CheckIn)
	bookings.Post("/:id/check-out", h.Bookings.CheckOut)
	bookings.Post("/:id/complete", privileged, h.Bookings.MarkCompleted)
	bookings.Post("/:id/no-show", privileged, h.Bookings.MarkNoShow)

	users := v1.Group("/users/me", auth)
	users.Post("/device-token", h.DeviceTokens.Register)
	users.Delete("/device-token", h.DeviceTokens.Delete)
}
