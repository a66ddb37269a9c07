package services

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
)

type StatisticsService struct {
	store *store.Store
}

func NewStatisticsService(st *store.Store) *StatisticsService {
	return &StatisticsService{store: st}
}

// OnNoiseRecordCreated bumps the owner's noise and audio counters in place.
// Redelivery of the same event counts twice.
func (s *StatisticsService) OnNoiseRecordCreated(ctx context.Context, recordID string, record dto.NoiseRecordDocument) Outcome {
	if err := record.Validate(); err != nil {
		slog.ErrorContext(ctx, "error updating noise statistics", "handler", HandlerNoiseStatistics, "doc_id", recordID, "kind", KindInvalidEvent, "error", err)
		return Failed(HandlerNoiseStatistics, KindInvalidEvent, recordID, err)
	}

	err := s.store.UpdateUser(ctx, record.UserID, store.Fields{
		models.ColNoiseRecordCount: store.Increment(1),
		models.ColAudioFileCount:   store.Increment(1),
		models.ColUpdatedAt:        store.ServerTimestamp,
	})
	if err != nil {
		kind := classify(err)
		slog.ErrorContext(ctx, "error updating noise statistics",
			"handler", HandlerNoiseStatistics,
			"uid", record.UserID,
			"doc_id", recordID,
			"kind", kind,
			"error", err,
		)
		return Failed(HandlerNoiseStatistics, kind, record.UserID, err)
	}

	slog.InfoContext(ctx, "noise statistics updated", "handler", HandlerNoiseStatistics, "uid", record.UserID, "doc_id", recordID)
	return succeeded(HandlerNoiseStatistics, record.UserID, "counters incremented")
}
