package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/models"
)

// MemoryLog is an in-process MessageLog used for local development and
// tests. Per-room order is append order; pages come back newest first,
// matching RedisLog.
type MemoryLog struct {
	mu       sync.RWMutex
	records  map[string]*models.StoredMessage
	roomLogs map[uuid.UUID][]string // message IDs, oldest first
}

// NewMemoryLog creates an empty in-memory message log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		records:  make(map[string]*models.StoredMessage),
		roomLogs: make(map[uuid.UUID][]string),
	}
}

// Close is a no-op for the in-memory log.
func (l *MemoryLog) Close() error { return nil }

// Ping always succeeds.
func (l *MemoryLog) Ping(ctx context.Context) error { return nil }

// Append persists a new record.
func (l *MemoryLog) Append(ctx context.Context, msg *models.StoredMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *msg
	l.records[msg.ID] = &stored
	l.roomLogs[msg.RoomID] = append(l.roomLogs[msg.RoomID], msg.ID)
	return nil
}

// Page returns up to limit records for the room, newest first.
func (l *MemoryLog) Page(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.StoredMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.roomLogs[roomID]
	messages := make([]models.StoredMessage, 0, limit)
	for i := len(ids) - 1 - offset; i >= 0 && len(messages) < limit; i-- {
		if rec, ok := l.records[ids[i]]; ok {
			messages = append(messages, *rec)
		}
	}
	return messages, nil
}

// Get retrieves a record by message ID.
func (l *MemoryLog) Get(ctx context.Context, id string) (*models.StoredMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

// Update overwrites an existing record.
func (l *MemoryLog) Update(ctx context.Context, msg *models.StoredMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *msg
	l.records[msg.ID] = &stored
	return nil
}

// Delete removes a record, reporting whether it existed.
func (l *MemoryLog) Delete(ctx context.Context, roomID uuid.UUID, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[id]; !ok {
		return false, nil
	}
	delete(l.records, id)

	ids := l.roomLogs[roomID]
	for i, mid := range ids {
		if mid == id {
			l.roomLogs[roomID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true, nil
}
