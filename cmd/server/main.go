package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gym-booking-service/internal/api"
	"gym-booking-service/internal/config"
	"gym-booking-service/internal/events"
	"gym-booking-service/internal/jwt"
	"gym-booking-service/internal/logging"
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/scheduler"
	"gym-booking-service/internal/service"
	"gym-booking-service/internal/storage"
	"gym-booking-service/internal/tracing"
	_ "gym-booking-service/migrations"
)

type repositories struct {
	classes      repository.ClassRepository
	instances    repository.ClassInstanceRepository
	bookings     repository.BookingRepository
	deviceTokens repository.DeviceTokenRepository
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.SetupGlobalHandler(cfg.ServiceName, cfg.LogLevel)

	shutdownTracer, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg)
		return
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	repos := openRepositories(cfg)
	defer repos.close()

	publisher, nc := connectPublisher(cfg)
	if nc != nil {
		defer nc.Close()
	}

	validate := service.NewValidator()

	var presigner service.ImagePresigner
	filePresigner, err := storage.NewFilePresigner(context.Background(), cfg.S3)
	if err != nil {
		log.Printf("WARNING: class image uploads disabled: %v", err)
	} else {
		presigner = filePresigner
		log.Println("Successfully initialized S3 presigner.")
	}

	classService := service.NewClassService(repos.classes, validate, presigner)
	instanceService := service.NewClassInstanceService(repos.classes, repos.instances, repos.bookings, publisher, cfg.Location())
	bookingService := service.NewBookingService(repos.bookings, repos.instances, repos.classes, publisher, service.LedgerConfig{
		MemberCancelCutoff: cfg.MemberCancelCutoff(),
	})

	if nc != nil {
		subscriber := events.NewPaymentSubscriber(nc, bookingService, events.PaymentSubscriberConfig{
			Permanent: service.IsPermanent,
		})
		if err := subscriber.Start(); err != nil {
			log.Printf("WARNING: Failed to start payment subscriber: %v", err)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(instanceService, cfg.Scheduler, cfg.Location())
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		sched.Start()
	}

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	app.Use(recover.New())
	app.Use(api.PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.ServiceName})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api.SetupRoutes(app, api.Handlers{
		Classes:      api.NewClassHandler(classService, instanceService, bookingService, validate),
		Instances:    api.NewClassInstanceHandler(instanceService, validate),
		Bookings:     api.NewBookingHandler(bookingService, validate),
		Payments:     api.NewPaymentHandler(bookingService, validate),
		DeviceTokens: api.NewDeviceTokenHandler(repos.deviceTokens, validate),
	}, api.RouterConfig{
		Tokens:               jwt.NewManager(cfg.JWTSecret, 0),
		InternalSharedSecret: cfg.InternalSharedSecret,
		BookingRateMax:       cfg.RateLimit.Max,
		BookingRateWindow:    cfg.RateLimitExpiration(),
	})

	go func() {
		log.Printf("Listening %s on port %s", cfg.ServiceName, cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(ctx)
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
}

func openRepositories(cfg *config.Config) repositories {
	if cfg.StoreDriver == "memory" {
		log.Println("Using in-memory store, data will not survive a restart.")
		store := repository.NewMemoryStore()
		return repositories{
			classes:      store.Classes,
			instances:    store.Instances,
			bookings:     store.Bookings,
			deviceTokens: store.DeviceTokens,
			close:        func() {},
		}
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Successfully connected to the database.")

	return repositories{
		classes:      repository.NewPostgresClassRepository(db),
		instances:    repository.NewPostgresClassInstanceRepository(db),
		bookings:     repository.NewPostgresBookingRepository(db),
		deviceTokens: repository.NewPostgresDeviceTokenRepository(db),
		close:        func() { db.Close() },
	}
}

func connectPublisher(cfg *config.Config) (events.EventPublisher, *nats.Conn) {
	if cfg.NatsURL == "" {
		log.Println("NATS_URL not set, lifecycle events will only be logged.")
		return events.LogPublisher{}, nil
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	log.Println("Successfully connected to NATS.")
	return events.NewNatsPublisher(nc), nc
}

func handleMigrations(cfg *config.Config) {
	fmt.Println("Running database migrations...")

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
