package push

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MaxTokensPerCall is the FCM multicast recipient cap.
const MaxTokensPerCall = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMGateway delivers multicast pushes through Firebase Cloud Messaging.
type FCMGateway struct {
	client    multicastSender
	chunkSize int
}

func NewFCMGateway(ctx context.Context, projectID, credentialsFile string) (*FCMGateway, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init messaging client: %w", err)
	}

	return &FCMGateway{client: client, chunkSize: MaxTokensPerCall}, nil
}

// SendMulticast splits the token set into chunks of at most MaxTokensPerCall
// and sums the per-chunk results. A chunk error aborts the remaining chunks;
// the counts delivered so far are still returned.
func (g *FCMGateway) SendMulticast(ctx context.Context, msg *Message) (*Result, error) {
	result := &Result{}
	chunks := chunkTokens(msg.Tokens, g.chunkSize)

	for i, tokens := range chunks {
		resp, err := g.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: tokens,
			Data:   msg.Data,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
		})
		if err != nil {
			return result, fmt.Errorf("multicast chunk %d/%d: %w", i+1, len(chunks), err)
		}
		result.SuccessCount += resp.SuccessCount
		result.FailureCount += resp.FailureCount

		if resp.FailureCount > 0 {
			slog.WarnContext(ctx, "multicast chunk had failures",
				"chunk", i+1,
				"failures", resp.FailureCount,
				"tokens", len(tokens),
			)
		}
	}
	return result, nil
}

func (g *FCMGateway) Name() string {
	return "fcm"
}

func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 {
		size = MaxTokensPerCall
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}
