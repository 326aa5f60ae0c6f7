package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents a chat room. The room's encryption key is deliberately
// not part of this struct: keys never leave the keyring and the store.
type Room struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	IsPrivate    bool        `json:"is_private"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	Participants []uuid.UUID `json:"participants,omitempty"`
	MessageCount int64       `json:"message_count"`
}
