// Package hub routes room-scoped events to the live sessions that have
// joined each room. It is the confidentiality boundary for real-time
// delivery: a session never receives an event for a room it has not
// joined. Delivery is fire-and-forget; durability belongs to the message
// log, and a reconnecting session re-fetches history.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/metrics"
	"github.com/cipherroom/cipherroom/internal/models"
)

// Sink receives events for one session. Implementations must not block:
// a slow consumer returns an error and simply misses the event.
type Sink interface {
	Send(ev Event) error
}

// Session binds a live connection to its authenticated principal and the
// set of rooms it has joined. The principal here is used only for
// routing and presence display; authorization always re-derives from the
// principal passed into each operation.
type Session struct {
	ID        string
	Principal models.Principal

	sink  Sink
	rooms map[uuid.UUID]struct{} // guarded by the hub's mutex
}

// Hub is the session registry and fan-out router.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[uuid.UUID]map[string]*Session
}

// New creates an empty hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[uuid.UUID]map[string]*Session),
	}
}

// Register adds a session for a new connection. Registering an existing
// connection ID replaces the previous session.
func (h *Hub) Register(connID string, principal models.Principal, sink Sink) *Session {
	session := &Session{
		ID:        connID,
		Principal: principal,
		sink:      sink,
		rooms:     make(map[uuid.UUID]struct{}),
	}

	h.mu.Lock()
	old, replaced := h.sessions[connID]
	if replaced {
		h.detachLocked(old)
	}
	h.sessions[connID] = session
	h.mu.Unlock()

	// A replaced session was already counted; the eventual Leave
	// decrements exactly once either way.
	if !replaced {
		metrics.SessionsActive.Inc()
	}
	h.logger.Debug().Str("conn_id", connID).Stringer("user_id", principal.ID).Msg("session registered")
	return session
}

// Join adds the connection to each room's delivery set. No membership
// check is made against the room directory here; callers pre-filter.
func (h *Hub) Join(connID string, roomIDs []uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[connID]
	if !ok {
		return
	}

	for _, roomID := range roomIDs {
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[string]*Session)
		}
		h.rooms[roomID][connID] = session
		session.rooms[roomID] = struct{}{}
	}
}

// Depart removes the connection from the given rooms without dropping
// the session.
func (h *Hub) Depart(connID string, roomIDs []uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[connID]
	if !ok {
		return
	}

	for _, roomID := range roomIDs {
		if members := h.rooms[roomID]; members != nil {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
		delete(session.rooms, roomID)
	}
}

// Leave removes the connection from every room's delivery set and drops
// the session. Idempotent: a second call is a no-op.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	session, ok := h.sessions[connID]
	if ok {
		h.detachLocked(session)
		delete(h.sessions, connID)
	}
	h.mu.Unlock()

	if ok {
		metrics.SessionsActive.Dec()
		h.logger.Debug().Str("conn_id", connID).Msg("session removed")
	}
}

// detachLocked removes the session from all room delivery sets.
// Caller holds h.mu.
func (h *Hub) detachLocked(session *Session) {
	for roomID := range session.rooms {
		if members := h.rooms[roomID]; members != nil {
			delete(members, session.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	session.rooms = make(map[uuid.UUID]struct{})
}

// Publish delivers the event to every session joined to the room.
func (h *Hub) Publish(roomID uuid.UUID, ev Event) {
	h.PublishExcept(roomID, "", ev)
}

// PublishExcept delivers the event to every session joined to the room
// except the named connection (used so typing signals skip their origin).
// A sink that cannot accept the event is skipped; delivery to the rest
// continues.
func (h *Hub) PublishExcept(roomID uuid.UUID, exceptConnID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, session := range h.rooms[roomID] {
		if connID == exceptConnID {
			continue
		}
		if err := session.sink.Send(ev); err != nil {
			metrics.EventsDropped.Inc()
			h.logger.Debug().
				Str("conn_id", connID).
				Str("event", ev.Type).
				Err(err).
				Msg("event dropped")
			continue
		}
		metrics.EventsDelivered.WithLabelValues(ev.Type).Inc()
	}
}

// SessionCount returns the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// InRoom reports whether the connection has joined the room.
func (h *Hub) InRoom(connID string, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][connID]
	return ok
}

// RoomSessionCount returns the number of sessions joined to a room.
func (h *Hub) RoomSessionCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
