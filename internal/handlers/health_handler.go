package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping  func() error
	push  string
	kafka bool
}

// NewHealthHandler reports database reachability from ping, plus which push
// gateway and event sources are active.
func NewHealthHandler(ping func() error, pushGateway string, kafkaEnabled bool) *HealthHandler {
	return &HealthHandler{ping: ping, push: pushGateway, kafka: kafkaEnabled}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Push:      h.push,
		Kafka:     h.kafka,
	})
}
