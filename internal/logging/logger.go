package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

// Setup installs a JSON slog logger on stdout at the given level
// (debug, info, warn, error; anything else means info).
func Setup(level string) *slog.JSONHandler {
	handler := NewJSONHandler(os.Stdout, level)
	slog.SetDefault(slog.New(handler))
	return handler
}

func NewJSONHandler(w io.Writer, level string) *slog.JSONHandler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithEventID tags ctx with the id of the event being handled. Log records
// emitted with that context carry it as event_id.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, eventID)
}

func EventIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// EventIDHandler adds event_id from the context to every record.
type EventIDHandler struct {
	slog.Handler
}

func (h EventIDHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := EventIDFromContext(ctx); id != "" {
		record = record.Clone()
		record.AddAttrs(slog.String("event_id", id))
	}
	return h.Handler.Handle(ctx, record)
}

func (h EventIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return EventIDHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h EventIDHandler) WithGroup(name string) slog.Handler {
	return EventIDHandler{Handler: h.Handler.WithGroup(name)}
}
