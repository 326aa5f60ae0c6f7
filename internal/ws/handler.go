package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens via bearer token, not cookies, so cross-origin
	// upgrades carry no ambient credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is the wire shape of a client-to-server control message.
type inboundFrame struct {
	Type   string   `json:"type"` // "join", "leave", "typing.start", "typing.stop"
	Rooms  []string `json:"rooms,omitempty"`
	RoomID string   `json:"room_id,omitempty"`
}

// Handler upgrades authenticated requests and runs the session loop.
type Handler struct {
	hub     *hub.Hub
	tracker *hub.Tracker
	data    store.DataStore
	logger  zerolog.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(h *hub.Hub, tracker *hub.Tracker, data store.DataStore, logger zerolog.Logger) *Handler {
	return &Handler{hub: h, tracker: tracker, data: data, logger: logger}
}

// ServeHTTP upgrades the connection and registers a session for the
// authenticated principal. The session lives until the socket closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := newClient(connID, conn, h.logger)
	h.hub.Register(connID, principal, client)

	h.logger.Info().
		Str("conn_id", connID).
		Stringer("user_id", principal.ID).
		Msg("websocket connected")

	go client.writePump()
	h.readPump(r, connID, client)
}

// readPump processes inbound control frames until the connection drops.
// Disconnect tears the session down; typing entries the client never
// cleared expire via the tracker's TTL.
func (h *Handler) readPump(r *http.Request, connID string, client *Client) {
	principal, _ := middleware.GetPrincipalFromContext(r.Context())

	defer func() {
		h.hub.Leave(connID)
		close(client.done)
		h.logger.Info().Str("conn_id", connID).Msg("websocket disconnected")
	}()

	client.conn.SetReadLimit(maxFrameSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Str("conn_id", connID).Err(err).Msg("websocket read error")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "join":
			h.handleJoin(r, connID, principal.ID, frame.Rooms)
		case "leave":
			var rooms []uuid.UUID
			for _, raw := range frame.Rooms {
				if roomID, err := uuid.Parse(raw); err == nil {
					rooms = append(rooms, roomID)
				}
			}
			h.hub.Depart(connID, rooms)
		case "typing.start":
			// Gate on membership so a session cannot signal into a
			// room it never joined.
			if roomID, err := uuid.Parse(frame.RoomID); err == nil && h.hub.InRoom(connID, roomID) {
				h.tracker.Mark(roomID, connID, principal)
			}
		case "typing.stop":
			if roomID, err := uuid.Parse(frame.RoomID); err == nil && h.hub.InRoom(connID, roomID) {
				h.tracker.Clear(roomID, connID, principal.ID)
			}
		}
	}
}

// handleJoin adds the session to each requested room the principal is
// actually a participant of. Rooms that fail the membership check are
// silently skipped; the client learns nothing about them.
func (h *Handler) handleJoin(r *http.Request, connID string, userID uuid.UUID, rooms []string) {
	var allowed []uuid.UUID
	for _, raw := range rooms {
		roomID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ok, err := h.data.IsParticipant(r.Context(), roomID, userID)
		if err != nil {
			h.logger.Warn().Err(err).Stringer("room_id", roomID).Msg("membership check failed")
			continue
		}
		if ok {
			allowed = append(allowed, roomID)
		}
	}
	if len(allowed) > 0 {
		h.hub.Join(connID, allowed)
	}
}
