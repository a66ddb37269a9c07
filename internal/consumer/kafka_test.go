package consumer

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	seen []*events.Envelope
}

func (d *recordingDispatcher) Dispatch(_ context.Context, env *events.Envelope) services.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, env)
	return services.Failed(services.HandlerNoiseStatistics, services.KindNotFound, env.DocID, nil)
}

func TestDecodeMessageDerivesID(t *testing.T) {
	m := kafka.Message{
		Topic:     "noise-events",
		Partition: 2,
		Offset:    41,
		Value:     []byte(`{"type":"account.created","account":{"uid":"u1"}}`),
	}

	env, err := decodeMessage(m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "noise-events-2-41" {
		t.Fatalf("unexpected id %q", env.ID)
	}
}

func TestDecodeMessagePrefersHeaderID(t *testing.T) {
	m := kafka.Message{
		Topic:   "noise-events",
		Headers: []kafka.Header{{Key: "event-id", Value: []byte("evt-9")}},
		Value:   []byte(`{"type":"account.deleted","account":{"uid":"u1"}}`),
	}

	env, err := decodeMessage(m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "evt-9" {
		t.Fatalf("unexpected id %q", env.ID)
	}
}

func TestRunCommitsEveryMessage(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"id":"e1","type":"document.created","collection":"noise_records","docId":"n1","data":{"userId":"ghost"}}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"id":"e3","type":"account.created","account":{"uid":"u1"}}`)},
	}}
	dispatcher := &recordingDispatcher{}
	c := &Consumer{reader: reader, dispatcher: dispatcher}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(dispatcher.seen) != 2 {
		t.Fatalf("expected 2 dispatched envelopes got %d", len(dispatcher.seen))
	}
	if len(reader.committed) != 3 {
		t.Fatalf("expected all 3 offsets committed got %v", reader.committed)
	}

	if err := c.Close(); err != nil || !reader.closed {
		t.Fatalf("close: %v", err)
	}
}
