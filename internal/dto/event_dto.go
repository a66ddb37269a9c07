package dto

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMissingField = errors.New("missing required field")

// AccountIdentity is the payload of account created/deleted events.
type AccountIdentity struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

func (a *AccountIdentity) Validate() error {
	if strings.TrimSpace(a.UID) == "" {
		return fmt.Errorf("%w: uid", ErrMissingField)
	}
	return nil
}

// NoiseRecordDocument is the subset of a created noise record the statistics
// updater reads.
type NoiseRecordDocument struct {
	UserID string `json:"userId"`
}

func (n *NoiseRecordDocument) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	return nil
}

// PostDocument is the subset of a created post the notifier reads.
type PostDocument struct {
	UserID      string  `json:"userId"`
	ApartmentID *string `json:"apartmentId,omitempty"`
	Title       string  `json:"title,omitempty"`
}

func (p *PostDocument) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	return nil
}

// Apartment returns the targeted apartment id, or "" when the post has none.
// The id is matched as written, padding included.
func (p *PostDocument) Apartment() string {
	if p.ApartmentID == nil {
		return ""
	}
	return *p.ApartmentID
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Push      string `json:"push"`
	Kafka     bool   `json:"kafka"`
}
