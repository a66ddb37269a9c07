package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/segmentio/kafka-go"
)

// Dispatcher is the part of events.Dispatcher the consumer needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, env *events.Envelope) services.Outcome
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds event envelopes from a Kafka topic into the dispatcher.
// Offsets are committed after dispatch whatever the outcome, so a failed
// handler is recorded once and not redelivered.
type Consumer struct {
	reader     messageReader
	dispatcher Dispatcher
}

func New(brokers []string, topic, groupID string, dispatcher Dispatcher) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return &Consumer{reader: r, dispatcher: dispatcher}
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("kafka consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				slog.Info("kafka consumer stopped")
				return nil
			}
			slog.Error("kafka fetch error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("kafka commit error", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	env, err := decodeMessage(m)
	if err != nil {
		slog.Error("dropping undecodable event",
			"topic", m.Topic,
			"partition", m.Partition,
			"offset", m.Offset,
			"kind", services.KindInvalidEvent,
			"error", err,
		)
		return
	}
	c.dispatcher.Dispatch(ctx, env)
}

// decodeMessage parses the message value as an envelope. An envelope without
// an id gets one derived from its position in the log, so redelivery of the
// same message carries the same id.
func decodeMessage(m kafka.Message) (*events.Envelope, error) {
	env, err := events.Decode(m.Value)
	if err != nil {
		return nil, err
	}
	if env.ID == "" {
		for _, h := range m.Headers {
			if h.Key == "event-id" && len(h.Value) > 0 {
				env.ID = string(h.Value)
				break
			}
		}
	}
	if env.ID == "" {
		env.ID = fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
	}
	return env, nil
}
