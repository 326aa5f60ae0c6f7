package models

import (
	"github.com/google/uuid"
)

// Kind classifies a message body.
type Kind string

const (
	KindText   Kind = "text"
	KindFile   Kind = "file"
	KindImage  Kind = "image"
	KindSystem Kind = "system"
)

// Valid reports whether k is a recognized message kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindFile, KindImage, KindSystem:
		return true
	}
	return false
}

// DecodeFailedContent is the sentinel body returned for a message whose
// ciphertext no longer authenticates under the room key. It replaces the
// plaintext so the rest of a page stays usable.
const DecodeFailedContent = "[unreadable message]"

// Message is the decrypted view of a stored message. Content only ever
// exists in memory; at rest the body is a StoredMessage.
type Message struct {
	ID           string    `json:"id"` // ULID
	RoomID       uuid.UUID `json:"room_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	SenderName   string    `json:"sender_name"` // snapshot taken at send time
	Content      string    `json:"content"`
	Kind         Kind      `json:"kind"`
	ReplyTo      string    `json:"reply_to,omitempty"`
	Timestamp    int64     `json:"ts"` // unix ms, server-assigned
	Edited       bool      `json:"edited,omitempty"`
	EditedAt     int64     `json:"edited_at,omitempty"`
	DecodeFailed bool      `json:"decode_failed,omitempty"`
}

// StoredMessage is the at-rest form of a message. Ciphertext carries the
// 16-byte Poly1305 tag on its tail (AEAD convention); Nonce is the unique
// 12-byte value used for this encryption.
type StoredMessage struct {
	ID         string    `json:"id"` // ULID
	RoomID     uuid.UUID `json:"room_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Ciphertext []byte    `json:"ct"`
	Nonce      []byte    `json:"nonce"`
	Kind       Kind      `json:"kind"`
	ReplyTo    string    `json:"reply_to,omitempty"`
	Timestamp  int64     `json:"ts"`
	Edited     bool      `json:"edited,omitempty"`
	EditedAt   int64     `json:"edited_at,omitempty"`
}
