package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
)

// Handler names, used in logs, metrics and outcomes.
const (
	HandlerCreateProfile    = "create_user_profile"
	HandlerDeleteProfile    = "delete_user_profile"
	HandlerNoiseStatistics  = "update_noise_statistics"
	HandlerPushNotification = "send_push_notification"
	HandlerUnrouted         = "unrouted"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "recorded_error"
)

type Kind string

const (
	KindStore        Kind = "store"
	KindNotFound     Kind = "not_found"
	KindGateway      Kind = "gateway"
	KindInvalidEvent Kind = "invalid_event"
	KindCancelled    Kind = "cancelled"
)

// Outcome is what a handler reports instead of returning an error. A failed
// outcome is recorded and never propagated to the event source.
type Outcome struct {
	Handler    string        `json:"handler"`
	EventID    string        `json:"eventId,omitempty"`
	Status     Status        `json:"status"`
	Kind       Kind          `json:"kind,omitempty"`
	Subject    string        `json:"subject,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Recipients int           `json:"recipients,omitempty"`
	Delivered  int           `json:"delivered,omitempty"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"-"`
}

func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Hook observes every outcome after a handler returns.
type Hook interface {
	Observe(ctx context.Context, o Outcome)
}

type HookFunc func(ctx context.Context, o Outcome)

func (f HookFunc) Observe(ctx context.Context, o Outcome) { f(ctx, o) }

type Hooks []Hook

func (hs Hooks) Observe(ctx context.Context, o Outcome) {
	for _, h := range hs {
		h.Observe(ctx, o)
	}
}

func succeeded(handler, subject, detail string) Outcome {
	return Outcome{Handler: handler, Status: StatusOK, Subject: subject, Detail: detail}
}

func skipped(handler, subject, detail string) Outcome {
	return Outcome{Handler: handler, Status: StatusSkipped, Subject: subject, Detail: detail}
}

func Failed(handler string, kind Kind, subject string, err error) Outcome {
	o := Outcome{Handler: handler, Status: StatusFailed, Kind: kind, Subject: subject, Err: err}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}

// Skipped builds a skipped outcome for callers outside this package.
func Skipped(handler, subject, detail string) Outcome {
	return skipped(handler, subject, detail)
}

// classify maps a store-side error to an outcome kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, models.ErrInvalidUser), errors.Is(err, dto.ErrMissingField):
		return KindInvalidEvent
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindStore
	}
}
