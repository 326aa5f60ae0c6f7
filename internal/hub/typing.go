package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/metrics"
	"github.com/cipherroom/cipherroom/internal/models"
)

// DefaultTypingTTL is how long a typing entry lives without a refresh
// before the sweeper clears it on the client's behalf.
const DefaultTypingTTL = 5 * time.Second

type typingKey struct {
	roomID uuid.UUID
	userID uuid.UUID
}

// Tracker holds ephemeral per-(room, user) typing state. Nothing here is
// ever persisted; entries expire by timeout so an abrupt disconnect
// cannot leave an indicator stuck on.
type Tracker struct {
	hub    *Hub
	ttl    time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	active map[typingKey]time.Time
}

// NewTracker creates a typing tracker publishing through the given hub.
// A non-positive ttl falls back to DefaultTypingTTL.
func NewTracker(h *Hub, ttl time.Duration, logger zerolog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Tracker{
		hub:    h,
		ttl:    ttl,
		logger: logger,
		active: make(map[typingKey]time.Time),
	}
}

// Mark records or refreshes typing activity and announces it to the room,
// excluding the originating connection. Rapid keystrokes from the same
// user simply overwrite the last-activity time.
func (t *Tracker) Mark(roomID uuid.UUID, connID string, principal models.Principal) {
	t.mu.Lock()
	t.active[typingKey{roomID: roomID, userID: principal.ID}] = time.Now()
	t.mu.Unlock()

	metrics.TypingEvents.Inc()
	t.hub.PublishExcept(roomID, connID, Event{
		Type:    EventTypingStarted,
		RoomID:  roomID,
		Payload: Typing{UserID: principal.ID, UserName: principal.DisplayName},
	})
}

// Clear drops the typing entry and announces the stop to the room,
// excluding the originating connection.
func (t *Tracker) Clear(roomID uuid.UUID, connID string, userID uuid.UUID) {
	t.mu.Lock()
	delete(t.active, typingKey{roomID: roomID, userID: userID})
	t.mu.Unlock()

	metrics.TypingEvents.Inc()
	t.hub.PublishExcept(roomID, connID, Event{
		Type:    EventTypingStopped,
		RoomID:  roomID,
		Payload: Typing{UserID: userID},
	})
}

// Run sweeps expired entries until ctx is canceled, emitting a stop event
// for any user whose typing state outlived the TTL. The origin connection
// is usually gone by then, so the whole room is notified.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.sweep(now)
		}
	}
}

func (t *Tracker) sweep(now time.Time) {
	t.mu.Lock()
	var expired []typingKey
	for key, last := range t.active {
		if now.Sub(last) > t.ttl {
			delete(t.active, key)
			expired = append(expired, key)
		}
	}
	t.mu.Unlock()

	for _, key := range expired {
		t.logger.Debug().
			Stringer("room_id", key.roomID).
			Stringer("user_id", key.userID).
			Msg("typing state expired")
		t.hub.Publish(key.roomID, Event{
			Type:    EventTypingStopped,
			RoomID:  key.roomID,
			Payload: Typing{UserID: key.userID},
		})
	}
}
