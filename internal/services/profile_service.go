package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
)

// ownedCollections are swept by the account-deletion cascade, in order.
var ownedCollections = []string{
	models.CollectionPosts,
	models.CollectionComments,
	models.CollectionNoiseRecords,
}

type ProfileService struct {
	store *store.Store
	now   func() time.Time
}

func NewProfileService(st *store.Store) *ProfileService {
	return &ProfileService{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OnAccountCreated writes the default profile document for a new account.
func (s *ProfileService) OnAccountCreated(ctx context.Context, identity dto.AccountIdentity) Outcome {
	if err := identity.Validate(); err != nil {
		slog.ErrorContext(ctx, "error creating user profile", "handler", HandlerCreateProfile, "kind", KindInvalidEvent, "error", err)
		return Failed(HandlerCreateProfile, KindInvalidEvent, identity.UID, err)
	}

	user := models.NewUser(identity.UID, identity.Email, identity.DisplayName, identity.PhotoURL, s.now())
	if err := s.store.SetUser(ctx, user); err != nil {
		kind := classify(err)
		slog.ErrorContext(ctx, "error creating user profile", "handler", HandlerCreateProfile, "uid", identity.UID, "kind", kind, "error", err)
		return Failed(HandlerCreateProfile, kind, identity.UID, err)
	}

	slog.InfoContext(ctx, "user profile created", "handler", HandlerCreateProfile, "uid", identity.UID)
	return succeeded(HandlerCreateProfile, identity.UID, "profile created")
}

// OnAccountDeleted removes the user's record and every content item they own.
func (s *ProfileService) OnAccountDeleted(ctx context.Context, identity dto.AccountIdentity) Outcome {
	if err := identity.Validate(); err != nil {
		slog.ErrorContext(ctx, "error deleting user data", "handler", HandlerDeleteProfile, "kind", KindInvalidEvent, "error", err)
		return Failed(HandlerDeleteProfile, KindInvalidEvent, identity.UID, err)
	}

	deleted, err := s.DeleteUserData(ctx, identity.UID)
	if err != nil {
		kind := classify(err)
		slog.ErrorContext(ctx, "error deleting user data", "handler", HandlerDeleteProfile, "uid", identity.UID, "kind", kind, "error", err)
		return Failed(HandlerDeleteProfile, kind, identity.UID, err)
	}

	slog.InfoContext(ctx, "user data deleted", "handler", HandlerDeleteProfile, "uid", identity.UID, "documents", deleted)
	return succeeded(HandlerDeleteProfile, identity.UID, fmt.Sprintf("deleted %d documents", deleted))
}

// DeleteUserData queries each owned collection, stages every match plus the
// user record, and commits them as one batch. The queries run separately, so
// content written after they return survives the cascade.
func (s *ProfileService) DeleteUserData(ctx context.Context, uid string) (int, error) {
	batch := s.store.Batch()

	for _, collection := range ownedCollections {
		refs, err := s.store.OwnedBy(ctx, collection, uid)
		if err != nil {
			return 0, err
		}
		for _, ref := range refs {
			batch.Delete(ref)
		}
	}
	batch.Delete(store.Ref{Collection: models.CollectionUsers, ID: uid})

	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return batch.Len(), nil
}
