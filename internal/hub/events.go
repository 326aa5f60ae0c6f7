package hub

import (
	"github.com/google/uuid"
)

// Event types delivered to joined sessions. Each event is scoped to
// exactly one room's delivery set.
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventTypingStarted  = "typing.started"
	EventTypingStopped  = "typing.stopped"
)

// Event is the envelope fanned out to sessions.
type Event struct {
	Type    string    `json:"type"`
	RoomID  uuid.UUID `json:"room_id"`
	Payload any       `json:"payload,omitempty"`
}

// MessageEdited is the payload for message.edited events.
type MessageEdited struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	EditedAt int64  `json:"edited_at"`
}

// MessageDeleted is the payload for message.deleted events.
type MessageDeleted struct {
	ID string `json:"id"`
}

// Typing is the payload for typing.started and typing.stopped events.
type Typing struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name,omitempty"`
}
