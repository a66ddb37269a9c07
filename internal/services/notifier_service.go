package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/push"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
)

const (
	NewPostTitle      = "새로운 소음 신고"
	newPostBodyFormat = "%s님이 새로운 게시글을 작성했습니다."
	PushTypeNewPost   = "new_post"
)

type NotifierService struct {
	store   *store.Store
	gateway push.Gateway
}

func NewNotifierService(st *store.Store, gateway push.Gateway) *NotifierService {
	return &NotifierService{store: st, gateway: gateway}
}

// OnPostCreated notifies every other resident of the post's apartment that
// has a registered device token. It sends at most one multicast.
func (s *NotifierService) OnPostCreated(ctx context.Context, postID string, post dto.PostDocument) Outcome {
	if err := post.Validate(); err != nil {
		slog.ErrorContext(ctx, "error sending push notification", "handler", HandlerPushNotification, "doc_id", postID, "kind", KindInvalidEvent, "error", err)
		return Failed(HandlerPushNotification, KindInvalidEvent, postID, err)
	}

	author, err := s.store.GetUser(ctx, post.UserID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "user data not found", "handler", HandlerPushNotification, "uid", post.UserID, "doc_id", postID)
		return skipped(HandlerPushNotification, postID, "author not found")
	}
	if err != nil {
		kind := classify(err)
		slog.ErrorContext(ctx, "error sending push notification", "handler", HandlerPushNotification, "uid", post.UserID, "doc_id", postID, "kind", kind, "error", err)
		return Failed(HandlerPushNotification, kind, postID, err)
	}

	apartmentID := post.Apartment()
	if apartmentID == "" {
		return skipped(HandlerPushNotification, postID, "post has no apartment")
	}

	residents, err := s.store.UsersByApartment(ctx, apartmentID)
	if err != nil {
		kind := classify(err)
		slog.ErrorContext(ctx, "error sending push notification", "handler", HandlerPushNotification, "doc_id", postID, "apartment_id", apartmentID, "kind", kind, "error", err)
		return Failed(HandlerPushNotification, kind, postID, err)
	}

	tokens := RecipientTokens(residents, author.UID)
	if len(tokens) == 0 {
		return skipped(HandlerPushNotification, postID, "no recipients")
	}

	result, err := s.gateway.SendMulticast(ctx, &push.Message{
		Title: NewPostTitle,
		Body:  fmt.Sprintf(newPostBodyFormat, author.Nickname),
		Data: map[string]string{
			"postId": postID,
			"type":   PushTypeNewPost,
		},
		Tokens: tokens,
	})
	if err != nil {
		slog.ErrorContext(ctx, "error sending push notification",
			"handler", HandlerPushNotification,
			"doc_id", postID,
			"gateway", s.gateway.Name(),
			"tokens", len(tokens),
			"kind", KindGateway,
			"error", err,
		)
		o := Failed(HandlerPushNotification, KindGateway, postID, err)
		o.Recipients = len(tokens)
		if result != nil {
			o.Delivered = result.SuccessCount
		}
		return o
	}

	slog.InfoContext(ctx, "push notification sent", "handler", HandlerPushNotification, "doc_id", postID, "success_count", result.SuccessCount, "tokens", len(tokens))
	o := succeeded(HandlerPushNotification, postID, fmt.Sprintf("push notification sent to %d users", result.SuccessCount))
	o.Recipients = len(tokens)
	o.Delivered = result.SuccessCount
	return o
}

// RecipientTokens collects the device token of every resident except the
// author. Exclusion is by uid, so two accounts sharing a token both count.
func RecipientTokens(residents []models.User, authorUID string) []string {
	tokens := make([]string, 0, len(residents))
	for i := range residents {
		if residents[i].UID == authorUID {
			continue
		}
		if token := residents[i].Token(); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
