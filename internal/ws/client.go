// Package ws bridges WebSocket connections onto the hub. Each connection
// gets a Client whose buffered send channel decouples fan-out from socket
// writes: a consumer that cannot drain its buffer misses events instead
// of stalling the room.
package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/hub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 8 * 1024
	sendBuffer   = 64
)

var errBufferFull = errors.New("send buffer full")

// Client is the hub.Sink for one WebSocket connection.
type Client struct {
	connID string
	conn   *websocket.Conn
	send   chan hub.Event
	done   chan struct{}
	logger zerolog.Logger
}

func newClient(connID string, conn *websocket.Conn, logger zerolog.Logger) *Client {
	return &Client{
		connID: connID,
		conn:   conn,
		send:   make(chan hub.Event, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues an event for delivery. It never blocks: a full buffer or a
// closed connection reports an error and the event is dropped for this
// session only.
func (c *Client) Send(ev hub.Event) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errBufferFull
	}
}

// outboundFrame is the wire shape of a server-to-client event.
type outboundFrame struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id"`
	Payload interface{} `json:"payload,omitempty"`
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. It owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			frame := outboundFrame{Type: ev.Type, RoomID: ev.RoomID.String(), Payload: ev.Payload}
			data, err := json.Marshal(frame)
			if err != nil {
				c.logger.Error().Err(err).Str("event", ev.Type).Msg("failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
