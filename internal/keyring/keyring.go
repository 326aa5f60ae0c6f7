// Package keyring resolves the single symmetric key bound to each room.
// Keys are generated once at room creation, persisted with the room row,
// and never rotated; this registry is the only component that hands them
// out, and only to the encryption path.
package keyring

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/models"
	"github.com/cipherroom/cipherroom/internal/store"
)

// Registry looks up room keys from the data store. Because a room's key
// is write-once, a key loaded once is cached for the life of the process;
// every caller observes the same key for a given room.
type Registry struct {
	store store.DataStore
	cache sync.Map // uuid.UUID -> []byte
}

// New creates a key registry over the given store.
func New(st store.DataStore) *Registry {
	return &Registry{store: st}
}

// KeyFor returns the room's encryption key, or models.ErrNotFound when
// the room does not exist.
func (r *Registry) KeyFor(ctx context.Context, roomID uuid.UUID) ([]byte, error) {
	if cached, ok := r.cache.Load(roomID); ok {
		return cached.([]byte), nil
	}

	key, err := r.store.GetRoomKey(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, models.ErrNotFound
	}

	// LoadOrStore keeps the first value on a race, so concurrent callers
	// never observe two different keys for one room.
	actual, _ := r.cache.LoadOrStore(roomID, key)
	return actual.([]byte), nil
}
