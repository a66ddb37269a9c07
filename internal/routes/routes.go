package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	eventHandler *handlers.EventHandler,
	healthHandler *handlers.HealthHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Health is public, so rate limit it: 60 req/min per IP
	api.Get("/health", limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}), healthHandler.Check)

	// Event delivery (signed by the event source, never rate limited)
	ev := api.Group("/events", middleware.EventSourceProtected(cfg))
	ev.Post("/", eventHandler.Envelope)
	ev.Post("/accounts/created", eventHandler.AccountCreated)
	ev.Post("/accounts/deleted", eventHandler.AccountDeleted)
	ev.Post("/documents/:collection/:docId/created", eventHandler.DocumentCreated)
}
