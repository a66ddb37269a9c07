package telemetry

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/getsentry/sentry-go"
)

// Sentry reports recorded errors. Other outcomes are ignored.
type Sentry struct{}

func (Sentry) Observe(ctx context.Context, o services.Outcome) {
	if !o.Failed() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	err := o.Err
	if err == nil {
		err = errors.New(o.Detail)
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("handler", o.Handler)
		scope.SetTag("kind", string(o.Kind))
		if o.EventID != "" {
			scope.SetTag("event_id", o.EventID)
		}
		scope.SetContext("outcome", sentry.Context{
			"subject":    o.Subject,
			"detail":     o.Detail,
			"recipients": o.Recipients,
			"delivered":  o.Delivered,
		})
		hub.CaptureException(err)
	})
}
