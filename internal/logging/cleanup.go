package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"gorm.io/gorm"
)

// StartCleanup deletes system_logs older than retention once a day until ctx
// is cancelled.
func StartCleanup(ctx context.Context, db *gorm.DB, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PurgeOlderThan(ctx, db, time.Now().Add(-retention))
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PurgeOlderThan removes log rows stamped before cutoff and returns how many
// were deleted.
func PurgeOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) int64 {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "log cleanup failed", "error", result.Error)
		return 0
	}
	if result.RowsAffected > 0 {
		slog.InfoContext(ctx, "log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected
}
