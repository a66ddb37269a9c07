package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const HeaderEventID = "X-Event-ID"

type Dispatcher interface {
	Dispatch(ctx context.Context, env *events.Envelope) services.Outcome
}

// EventHandler receives events pushed over HTTP. Handler failures are
// reported in the 200 response body; only an undecodable body is a 400.
type EventHandler struct {
	dispatcher Dispatcher
}

func NewEventHandler(dispatcher Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

func (h *EventHandler) AccountCreated(c *fiber.Ctx) error {
	return h.account(c, events.TypeAccountCreated)
}

func (h *EventHandler) AccountDeleted(c *fiber.Ctx) error {
	return h.account(c, events.TypeAccountDeleted)
}

func (h *EventHandler) account(c *fiber.Ctx, typ events.Type) error {
	var identity dto.AccountIdentity
	if err := c.BodyParser(&identity); err != nil {
		return badRequest(c, "Invalid request body")
	}

	return h.dispatch(c, &events.Envelope{
		ID:      eventID(c),
		Type:    typ,
		Account: &identity,
	})
}

// DocumentCreated takes the created document's snapshot as the request body.
func (h *EventHandler) DocumentCreated(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return badRequest(c, "Invalid document snapshot")
	}

	return h.dispatch(c, &events.Envelope{
		ID:         eventID(c),
		Type:       events.TypeDocumentCreated,
		Collection: utils.CopyString(c.Params("collection")),
		DocID:      utils.CopyString(c.Params("docId")),
		Data:       append(json.RawMessage(nil), body...),
	})
}

// Envelope accepts the transport-neutral form used by the Kafka consumer.
func (h *EventHandler) Envelope(c *fiber.Ctx) error {
	var env events.Envelope
	if err := json.Unmarshal(c.Body(), &env); err != nil {
		return badRequest(c, "Invalid event envelope")
	}
	if env.ID == "" {
		env.ID = eventID(c)
	}
	return h.dispatch(c, &env)
}

func (h *EventHandler) dispatch(c *fiber.Ctx, env *events.Envelope) error {
	ctx := c.UserContext()
	if hub := sentryfiber.GetHubFromContext(c); hub != nil {
		ctx = sentry.SetHubOnContext(ctx, hub)
	}

	o := h.dispatcher.Dispatch(ctx, env)
	slog.DebugContext(ctx, "event handled",
		"source", middleware.EventSource(c),
		"handler", o.Handler,
		"status", o.Status,
	)
	return c.JSON(o)
}

// eventID copies the header out of fiber's request buffer, which is reused
// after the handler returns.
func eventID(c *fiber.Ctx) string {
	return utils.CopyString(c.Get(HeaderEventID))
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
