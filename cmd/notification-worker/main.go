package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gym-booking-service/internal/config"
	"gym-booking-service/internal/logging"
	"gym-booking-service/internal/notify"
	"gym-booking-service/internal/repository"
	"gym-booking-service/internal/tracing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.SetupGlobalHandler("notification-worker", cfg.LogLevel)

	shutdownTracer, err := tracing.InitTracerProvider("notification-worker", cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	if cfg.NatsURL == "" {
		log.Fatal("NATS_URL environment variable is not set")
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Successfully connected to the database.")

	pusher, err := notify.NewPusher(cfg.APNS)
	if err != nil {
		log.Fatalf("Failed to initialize APNS client: %v", err)
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	worker := notify.NewWorker(nc, repository.NewPostgresDeviceTokenRepository(db), pusher)
	if err := worker.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Notification worker started, waiting for events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down notification worker...")
}
