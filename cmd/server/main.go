package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/consumer"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/push"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.LogLevel)

	if cfg.EventsJWTSecret == "" {
		slog.Error("EVENTS_JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// ERROR+ records also go to system_logs in batches
	dbLogHandler := logging.NewDBHandler(database.DB, 5*time.Second)
	slog.SetDefault(slog.New(logging.EventIDHandler{
		Handler: logging.NewMultiHandler(stdout, dbLogHandler),
	}))
	logging.StartCleanup(ctx, database.DB, cfg.LogRetention)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Push gateway
	var gateway push.Gateway = push.LogGateway{}
	if cfg.PushEnabled() {
		fcm, err := push.NewFCMGateway(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			slog.Error("fcm init failed", "error", err)
			os.Exit(1)
		}
		gateway = fcm
	} else {
		slog.Warn("no FCM credentials configured, push notifications are logged only")
	}

	// Services
	st := store.New(database.DB)
	dispatcher := events.NewDispatcher(
		services.NewProfileService(st),
		services.NewStatisticsService(st),
		services.NewNotifierService(st, gateway),
		events.Options{
			MaxInstances: cfg.MaxInstances,
			Timeout:      cfg.HandlerTimeout,
			Hooks:        []services.Hook{telemetry.Metrics{}, telemetry.Sentry{}},
		},
	)

	// Kafka event source (optional)
	var kafkaConsumer *consumer.Consumer
	kafkaDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		kafkaConsumer = consumer.New(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, dispatcher)
		go func() {
			defer close(kafkaDone)
			if err := kafkaConsumer.Run(ctx); err != nil {
				slog.Error("kafka consumer failed", "error", err)
			}
		}()
	} else {
		close(kafkaDone)
	}

	// Handlers
	eventHandler := handlers.NewEventHandler(dispatcher)
	healthHandler := handlers.NewHealthHandler(database.Ping, gateway.Name(), cfg.KafkaEnabled())

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, eventHandler, healthHandler)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "push", gateway.Name(), "kafka", cfg.KafkaEnabled())
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(cfg.HandlerTimeout); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			slog.Error("kafka close error", "error", err)
		}
	}
	<-kafkaDone

	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
