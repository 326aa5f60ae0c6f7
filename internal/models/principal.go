package models

import (
	"github.com/google/uuid"
)

// Principal is the authenticated identity attached to every operation.
// It is validated once at the auth boundary and passed through unchanged;
// nothing downstream re-validates or re-resolves it.
type Principal struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role,omitempty"`
}
