package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ handler logs so failed invocations can be audited
// and reconciled by hand.
type SystemLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	Level      string         `gorm:"size:10;not null;index" json:"level"`
	Message    string         `gorm:"type:text" json:"message"`
	Handler    string         `gorm:"size:50;index" json:"handler"`
	EventID    string         `gorm:"size:128;index" json:"event_id"`
	UserID     *string        `gorm:"size:128;index" json:"user_id"`
	Collection string         `gorm:"size:50" json:"collection"`
	DocID      string         `gorm:"size:128" json:"doc_id"`
	Kind       string         `gorm:"size:30" json:"kind"`
	Error      string         `gorm:"type:text" json:"error"`
	LatencyMs  int            `json:"latency_ms"`
	Extra      datatypes.JSON `json:"extra"`
	CreatedAt  time.Time      `json:"created_at"`
}
