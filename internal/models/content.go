package models

import (
	"time"

	"gorm.io/datatypes"
)

// Collection names, shared by event routing and the cascade.
const (
	CollectionUsers        = "users"
	CollectionPosts        = "posts"
	CollectionComments     = "comments"
	CollectionNoiseRecords = "noise_records"
)

// ColOwner is the owning-user column every content collection carries.
const ColOwner = "user_id"

type Post struct {
	ID          string         `gorm:"primaryKey;size:128" json:"id"`
	UserID      string         `gorm:"size:128;not null;index" json:"userId"`
	ApartmentID *string        `gorm:"size:128;index" json:"apartmentId,omitempty"`
	Title       string         `gorm:"size:255" json:"title"`
	Content     string         `gorm:"type:text" json:"content"`
	Payload     datatypes.JSON `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Post) TableName() string {
	return CollectionPosts
}

type Comment struct {
	ID        string         `gorm:"primaryKey;size:128" json:"id"`
	PostID    string         `gorm:"size:128;not null;index" json:"postId"`
	UserID    string         `gorm:"size:128;not null;index" json:"userId"`
	Content   string         `gorm:"type:text" json:"content"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (Comment) TableName() string {
	return CollectionComments
}

// NoiseRecord is one uploaded noise measurement with its audio clip.
type NoiseRecord struct {
	ID              string         `gorm:"primaryKey;size:128" json:"id"`
	UserID          string         `gorm:"size:128;not null;index" json:"userId"`
	DecibelLevel    float64        `json:"decibelLevel"`
	DurationSeconds float64        `json:"durationSeconds"`
	AudioURL        string         `gorm:"size:1024" json:"audioUrl"`
	SizeBytes       int64          `json:"sizeBytes"`
	RecordedAt      *time.Time     `json:"recordedAt,omitempty"`
	Payload         datatypes.JSON `json:"payload,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (NoiseRecord) TableName() string {
	return CollectionNoiseRecords
}
