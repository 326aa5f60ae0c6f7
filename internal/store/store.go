package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/models"
)

// DataStore is the persistence contract for rooms, their keys, and their
// participant sets. PostgresStore, SQLiteStore, and MemoryStore implement
// it. Lookups return (nil, nil) when the record does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations. CreateRoom inserts the room, its encryption key,
	// and the creator's participant row in one transaction: a room is
	// never visible without its key.
	CreateRoom(ctx context.Context, name, description string, isPrivate bool, passHash string, createdBy uuid.UUID, key []byte) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomKey(ctx context.Context, id uuid.UUID) ([]byte, error)
	GetRoomPassHash(ctx context.Context, id uuid.UUID) (string, error)
	RoomsFor(ctx context.Context, userID uuid.UUID) ([]models.Room, error)

	// Participant operations
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// Counters for /stats
	IncrementMessageCount(ctx context.Context, id uuid.UUID) error
	CountRooms(ctx context.Context) (int64, error)
	SumMessageCount(ctx context.Context) (int64, error)
}

// MessageLog is the persistence contract for the per-room encrypted
// message log. Records are kept newest-first; callers reverse for
// chronological output. RedisLog and MemoryLog implement it.
type MessageLog interface {
	Close() error
	Ping(ctx context.Context) error

	// Append persists a new record. It must be fully written before it
	// returns; the caller broadcasts only after a successful append.
	Append(ctx context.Context, msg *models.StoredMessage) error

	// Page returns up to limit records for the room, newest first,
	// skipping offset records.
	Page(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.StoredMessage, error)

	// Get returns a record by message ID, (nil, nil) when absent.
	Get(ctx context.Context, id string) (*models.StoredMessage, error)

	// Update overwrites an existing record. Last writer wins.
	Update(ctx context.Context, msg *models.StoredMessage) error

	// Delete removes a record, reporting whether it existed.
	Delete(ctx context.Context, roomID uuid.UUID, id string) (bool, error)
}
