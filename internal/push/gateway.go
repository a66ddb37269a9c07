package push

import (
	"context"
	"log/slog"
)

// Message is one notification delivered to many device tokens.
type Message struct {
	Title  string
	Body   string
	Data   map[string]string
	Tokens []string
}

type Result struct {
	SuccessCount int
	FailureCount int
}

// Gateway sends a multicast push. Implementations deliver the whole token set
// for a single call, splitting it internally if the provider caps recipients.
type Gateway interface {
	SendMulticast(ctx context.Context, msg *Message) (*Result, error)
	Name() string
}

// LogGateway is used when no push credentials are configured. It records the
// message in the log and reports no deliveries.
type LogGateway struct{}

func (LogGateway) SendMulticast(ctx context.Context, msg *Message) (*Result, error) {
	slog.InfoContext(ctx, "push disabled, message not sent",
		"title", msg.Title,
		"tokens", len(msg.Tokens),
	)
	return &Result{}, nil
}

func (LogGateway) Name() string {
	return "log"
}
