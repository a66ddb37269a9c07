package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
)

type Type string

const (
	TypeAccountCreated  Type = "account.created"
	TypeAccountDeleted  Type = "account.deleted"
	TypeDocumentCreated Type = "document.created"
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the transport-neutral form of an incoming event. Account events
// carry Account; document events carry Collection, DocID and the document
// snapshot in Data.
type Envelope struct {
	ID         string               `json:"id"`
	Type       Type                 `json:"type"`
	Collection string               `json:"collection,omitempty"`
	DocID      string               `json:"docId,omitempty"`
	Account    *dto.AccountIdentity `json:"account,omitempty"`
	Data       json.RawMessage      `json:"data,omitempty"`
}

// Validate checks the envelope shape only. Payload fields are checked by the
// handler that consumes them.
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeAccountCreated, TypeAccountDeleted:
		if e.Account == nil {
			return fmt.Errorf("%w: %s without account", ErrInvalidEnvelope, e.Type)
		}
	case TypeDocumentCreated:
		if strings.TrimSpace(e.Collection) == "" || strings.TrimSpace(e.DocID) == "" {
			return fmt.Errorf("%w: document event needs collection and docId", ErrInvalidEnvelope)
		}
		if len(e.Data) == 0 || !json.Valid(e.Data) {
			return fmt.Errorf("%w: document event needs a JSON snapshot", ErrInvalidEnvelope)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	return nil
}

// Decode parses and validates an envelope.
func Decode(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
