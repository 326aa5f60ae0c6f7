package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/models"
)

// MemoryStore is an in-process DataStore used for local development and
// tests. It honors the same atomicity contract as the SQL stores: a room
// and its key become visible in one step.
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[uuid.UUID]*memoryRoom
	participants map[uuid.UUID]map[uuid.UUID]struct{}
}

type memoryRoom struct {
	room     models.Room
	key      []byte
	passHash string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[uuid.UUID]*memoryRoom),
		participants: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// CreateRoom inserts the room, key, and creator participant atomically.
func (s *MemoryStore) CreateRoom(ctx context.Context, name, description string, isPrivate bool, passHash string, createdBy uuid.UUID, key []byte) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := models.Room{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}

	s.rooms[room.ID] = &memoryRoom{
		room:     room,
		key:      append([]byte(nil), key...),
		passHash: passHash,
	}
	s.participants[room.ID] = map[uuid.UUID]struct{}{createdBy: {}}

	out := room
	out.Participants = []uuid.UUID{createdBy}
	return &out, nil
}

// GetRoom retrieves a room with its participant set.
func (s *MemoryStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}

	out := entry.room
	for userID := range s.participants[id] {
		out.Participants = append(out.Participants, userID)
	}
	return &out, nil
}

// GetRoomKey retrieves a room's encryption key.
func (s *MemoryStore) GetRoomKey(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), entry.key...), nil
}

// GetRoomPassHash retrieves the passphrase hash for a private room.
func (s *MemoryStore) GetRoomPassHash(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[id]
	if !ok {
		return "", nil
	}
	return entry.passHash, nil
}

// RoomsFor lists rooms the user participates in, newest-created first.
func (s *MemoryStore) RoomsFor(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []models.Room
	for roomID, members := range s.participants {
		if _, ok := members[userID]; ok {
			rooms = append(rooms, s.rooms[roomID].room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// AddParticipant adds a user to a room's participant set. Idempotent.
func (s *MemoryStore) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil
	}
	if s.participants[roomID] == nil {
		s.participants[roomID] = make(map[uuid.UUID]struct{})
	}
	s.participants[roomID][userID] = struct{}{}
	return nil
}

// IsParticipant reports whether the user is in the room's participant set.
func (s *MemoryStore) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.participants[roomID]
	if !ok {
		return false, nil
	}
	_, in := members[userID]
	return in, nil
}

// IncrementMessageCount bumps the room's message counter.
func (s *MemoryStore) IncrementMessageCount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.rooms[id]; ok {
		entry.room.MessageCount++
	}
	return nil
}

// CountRooms returns the total number of rooms.
func (s *MemoryStore) CountRooms(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rooms)), nil
}

// SumMessageCount returns the total message count across all rooms.
func (s *MemoryStore) SumMessageCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, entry := range s.rooms {
		sum += entry.room.MessageCount
	}
	return sum, nil
}
