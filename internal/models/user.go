package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultNickname is used when an account carries no display name.
const DefaultNickname = "익명사용자"

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Column names used by partial updates and queries.
const (
	ColUID              = "uid"
	ColUpdatedAt        = "updated_at"
	ColNoiseRecordCount = "stat_noise_record_count"
	ColAudioFileCount   = "storage_audio_file_count"
	ColApartmentInfo    = "apartment_info"
	KeyApartmentID      = "apartmentId"
)

var ErrInvalidUser = errors.New("invalid user record")

// User is the per-account profile document, keyed by the auth uid.
type User struct {
	UID                 string            `gorm:"column:uid;primaryKey;size:128" json:"uid"`
	Email               *string           `gorm:"size:255" json:"email"`
	Nickname            string            `gorm:"size:100;not null" json:"nickname"`
	ProfileImageURL     *string           `gorm:"size:1024" json:"profileImageUrl"`
	IsVerified          bool              `gorm:"not null" json:"isVerified"`
	IsApartmentVerified bool              `gorm:"not null" json:"isApartmentVerified"`
	ApartmentInfo       datatypes.JSON    `json:"apartmentInfo"`
	SocialLogins        datatypes.JSONMap `json:"socialLogins"`
	FCMToken            *string           `gorm:"column:fcm_token;size:4096" json:"fcmToken,omitempty"`
	Preferences         Preferences       `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	Statistics          Statistics        `gorm:"embedded;embeddedPrefix:stat_" json:"statistics"`
	Storage             StorageUsage      `gorm:"embedded;embeddedPrefix:storage_" json:"storage"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	LastLoginAt         time.Time         `json:"lastLoginAt"`
	IsActive            bool              `gorm:"not null" json:"isActive"`
	IsBlocked           bool              `gorm:"not null" json:"isBlocked"`
	Role                string            `gorm:"size:20;not null;default:'user'" json:"role"`
}

type Preferences struct {
	PushNotifications  bool `gorm:"not null" json:"pushNotifications"`
	EmailNotifications bool `gorm:"not null" json:"emailNotifications"`
	LocationSharing    bool `gorm:"not null" json:"locationSharing"`
}

// Statistics are denormalized counters. They are only ever incremented in
// place, never recomputed.
type Statistics struct {
	PostCount        int64 `gorm:"not null;default:0" json:"postCount"`
	CommentCount     int64 `gorm:"not null;default:0" json:"commentCount"`
	LikeCount        int64 `gorm:"not null;default:0" json:"likeCount"`
	ReportCount      int64 `gorm:"not null;default:0" json:"reportCount"`
	NoiseRecordCount int64 `gorm:"not null;default:0" json:"noiseRecordCount"`
}

type StorageUsage struct {
	TotalSizeBytes int64      `gorm:"not null;default:0" json:"totalSizeBytes"`
	AudioFileCount int64      `gorm:"not null;default:0" json:"audioFileCount"`
	LastCleanupAt  *time.Time `json:"lastCleanupAt"`
}

// ApartmentInfo identifies the residential building a user belongs to.
type ApartmentInfo struct {
	ApartmentID string `json:"apartmentId"`
	Name        string `json:"name,omitempty"`
	Address     string `json:"address,omitempty"`
	Building    string `json:"building,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// NewUser builds the default profile for a freshly created account. All three
// timestamps share the same instant.
func NewUser(uid string, email, displayName, photoURL *string, now time.Time) *User {
	nickname := DefaultNickname
	if displayName != nil && *displayName != "" {
		nickname = *displayName
	}

	return &User{
		UID:             uid,
		Email:           email,
		Nickname:        nickname,
		ProfileImageURL: photoURL,
		SocialLogins:    datatypes.JSONMap{},
		Preferences: Preferences{
			PushNotifications:  true,
			EmailNotifications: true,
			LocationSharing:    false,
		},
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
		IsActive:    true,
		IsBlocked:   false,
		Role:        RoleUser,
	}
}

// Apartment decodes ApartmentInfo. It returns nil when the user has none.
func (u *User) Apartment() (*ApartmentInfo, error) {
	raw := strings.TrimSpace(string(u.ApartmentInfo))
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var info ApartmentInfo
	if err := json.Unmarshal(u.ApartmentInfo, &info); err != nil {
		return nil, fmt.Errorf("decode apartment info: %w", err)
	}
	return &info, nil
}

// SetApartment replaces ApartmentInfo; nil clears it.
func (u *User) SetApartment(info *ApartmentInfo) error {
	if info == nil {
		u.ApartmentInfo = nil
		return nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode apartment info: %w", err)
	}
	u.ApartmentInfo = datatypes.JSON(b)
	return nil
}

// Token returns the registered device token, or "" when there is none.
// The token is passed to the gateway exactly as stored.
func (u *User) Token() string {
	if u.FCMToken == nil {
		return ""
	}
	return *u.FCMToken
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.UID) == "" {
		return fmt.Errorf("%w: uid is required", ErrInvalidUser)
	}
	switch u.Role {
	case RoleUser, RoleModerator, RoleAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	counters := map[string]int64{
		"postCount":        u.Statistics.PostCount,
		"commentCount":     u.Statistics.CommentCount,
		"likeCount":        u.Statistics.LikeCount,
		"reportCount":      u.Statistics.ReportCount,
		"noiseRecordCount": u.Statistics.NoiseRecordCount,
		"totalSizeBytes":   u.Storage.TotalSizeBytes,
		"audioFileCount":   u.Storage.AudioFileCount,
	}
	for name, v := range counters {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidUser, name)
		}
	}
	return nil
}

// BeforeCreate validates full-document writes at the store boundary.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	return u.Validate()
}
