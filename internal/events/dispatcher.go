package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const DefaultMaxInstances = 10

type Options struct {
	// MaxInstances bounds concurrent handler invocations. It does not order
	// invocations for the same entity.
	MaxInstances int64
	// Timeout is the per-invocation deadline, covering the wait for a slot;
	// zero means none.
	Timeout time.Duration
	Hooks   []services.Hook
}

// Dispatcher routes each envelope to exactly one handler and reports the
// outcome to the configured hooks.
type Dispatcher struct {
	profiles *services.ProfileService
	stats    *services.StatisticsService
	notifier *services.NotifierService
	hooks    services.Hooks
	sem      *semaphore.Weighted
	timeout  time.Duration
}

func NewDispatcher(
	profiles *services.ProfileService,
	stats *services.StatisticsService,
	notifier *services.NotifierService,
	opts Options,
) *Dispatcher {
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = DefaultMaxInstances
	}
	return &Dispatcher{
		profiles: profiles,
		stats:    stats,
		notifier: notifier,
		hooks:    services.Hooks(opts.Hooks),
		sem:      semaphore.NewWeighted(opts.MaxInstances),
		timeout:  opts.Timeout,
	}
}

// Dispatch never returns an error: every failure is folded into the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) services.Outcome {
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	ctx = logging.WithEventID(ctx, env.ID)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var o services.Outcome
	if err := d.sem.Acquire(ctx, 1); err != nil {
		slog.WarnContext(ctx, "event dropped before dispatch", "type", env.Type, "error", err)
		o = services.Failed(handlerFor(env), services.KindCancelled, env.DocID, err)
	} else {
		o = d.invoke(ctx, env)
		d.sem.Release(1)
	}

	o.EventID = env.ID
	o.Duration = time.Since(start)
	d.hooks.Observe(ctx, o)
	return o
}

func (d *Dispatcher) invoke(ctx context.Context, env *Envelope) services.Outcome {
	if err := env.Validate(); err != nil {
		slog.ErrorContext(ctx, "invalid event", "handler", handlerFor(env), "kind", services.KindInvalidEvent, "error", err)
		return services.Failed(handlerFor(env), services.KindInvalidEvent, env.DocID, err)
	}

	switch env.Type {
	case TypeAccountCreated:
		return d.profiles.OnAccountCreated(ctx, *env.Account)
	case TypeAccountDeleted:
		return d.profiles.OnAccountDeleted(ctx, *env.Account)
	case TypeDocumentCreated:
		return d.documentCreated(ctx, env)
	default:
		slog.WarnContext(ctx, "no handler for event type", "type", env.Type)
		return services.Skipped(services.HandlerUnrouted, env.DocID, "unknown event type "+string(env.Type))
	}
}

func (d *Dispatcher) documentCreated(ctx context.Context, env *Envelope) services.Outcome {
	switch env.Collection {
	case models.CollectionNoiseRecords:
		var record dto.NoiseRecordDocument
		if err := json.Unmarshal(env.Data, &record); err != nil {
			return d.undecodable(ctx, services.HandlerNoiseStatistics, env, err)
		}
		return d.stats.OnNoiseRecordCreated(ctx, env.DocID, record)
	case models.CollectionPosts:
		var post dto.PostDocument
		if err := json.Unmarshal(env.Data, &post); err != nil {
			return d.undecodable(ctx, services.HandlerPushNotification, env, err)
		}
		return d.notifier.OnPostCreated(ctx, env.DocID, post)
	default:
		slog.DebugContext(ctx, "no handler for collection", "collection", env.Collection, "doc_id", env.DocID)
		return services.Skipped(services.HandlerUnrouted, env.DocID, "no handler for collection "+env.Collection)
	}
}

func (d *Dispatcher) undecodable(ctx context.Context, handler string, env *Envelope, err error) services.Outcome {
	slog.ErrorContext(ctx, "undecodable document snapshot",
		"handler", handler,
		"collection", env.Collection,
		"doc_id", env.DocID,
		"kind", services.KindInvalidEvent,
		"error", err,
	)
	return services.Failed(handler, services.KindInvalidEvent, env.DocID, err)
}

func handlerFor(env *Envelope) string {
	switch env.Type {
	case TypeAccountCreated:
		return services.HandlerCreateProfile
	case TypeAccountDeleted:
		return services.HandlerDeleteProfile
	case TypeDocumentCreated:
		switch env.Collection {
		case models.CollectionNoiseRecords:
			return services.HandlerNoiseStatistics
		case models.CollectionPosts:
			return services.HandlerPushNotification
		}
	}
	return services.HandlerUnrouted
}
