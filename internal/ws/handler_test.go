package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/models"
	"github.com/cipherroom/cipherroom/internal/store"
)

// authAs stands in for the auth middleware, pinning the principal every
// connection to the wrapped handler resolves to.
func authAs(principal models.Principal, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type recordingSink struct {
	mu     sync.Mutex
	events []hub.Event
}

func (s *recordingSink) Send(ev hub.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Events() []hub.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hub.Event(nil), s.events...)
}

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpURL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestUpgradeJoinAndDeliver(t *testing.T) {
	data := store.NewMemoryStore()
	h := hub.New(zerolog.Nop())
	tracker := hub.NewTracker(h, time.Second, zerolog.Nop())
	alice := models.Principal{ID: uuid.New(), DisplayName: "alice", Role: "member"}

	room, err := data.CreateRoom(context.Background(), "general", "", false, "", alice.ID, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}

	// Metrics is the outermost middleware in the real router; the upgrade
	// has to hijack through its writer wrapper.
	handler := middleware.Metrics(authAs(alice, NewHandler(h, tracker, data, zerolog.Nop())))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dialWS(t, srv.URL)

	join := map[string]interface{}{"type": "join", "rooms": []string{room.ID.String()}}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return h.RoomSessionCount(room.ID) == 1 }, "session never joined the room")

	h.Publish(room.ID, hub.Event{
		Type:    hub.EventMessageCreated,
		RoomID:  room.ID,
		Payload: map[string]string{"id": "m1"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type   string `json:"type"`
		RoomID string `json:"room_id"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != hub.EventMessageCreated || frame.RoomID != room.ID.String() {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestJoinFilteredByMembership(t *testing.T) {
	data := store.NewMemoryStore()
	h := hub.New(zerolog.Nop())
	tracker := hub.NewTracker(h, time.Second, zerolog.Nop())
	alice := models.Principal{ID: uuid.New(), DisplayName: "alice", Role: "member"}
	bob := uuid.New()

	mine, err := data.CreateRoom(context.Background(), "mine", "", false, "", alice.ID, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	other, err := data.CreateRoom(context.Background(), "other", "", false, "", bob, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(authAs(alice, NewHandler(h, tracker, data, zerolog.Nop())))
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	join := map[string]interface{}{
		"type":  "join",
		"rooms": []string{mine.ID.String(), other.ID.String()},
	}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return h.RoomSessionCount(mine.ID) == 1 }, "own room never joined")
	// Both rooms were requested in one frame, so the other room's
	// membership is already decided by now.
	if h.RoomSessionCount(other.ID) != 0 {
		t.Fatal("session joined a room it is not a participant of")
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	data := store.NewMemoryStore()
	h := hub.New(zerolog.Nop())
	tracker := hub.NewTracker(h, time.Second, zerolog.Nop())
	alice := models.Principal{ID: uuid.New(), DisplayName: "alice", Role: "member"}

	srv := httptest.NewServer(authAs(alice, NewHandler(h, tracker, data, zerolog.Nop())))
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	waitFor(t, func() bool { return h.SessionCount() == 1 }, "session never registered")

	conn.Close()
	waitFor(t, func() bool { return h.SessionCount() == 0 }, "disconnect did not tear the session down")
}

func TestTypingRequiresJoinedRoom(t *testing.T) {
	data := store.NewMemoryStore()
	h := hub.New(zerolog.Nop())
	tracker := hub.NewTracker(h, time.Second, zerolog.Nop())
	alice := models.Principal{ID: uuid.New(), DisplayName: "alice", Role: "member"}

	room, err := data.CreateRoom(context.Background(), "general", "", false, "", alice.ID, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}

	// A direct hub session observes what the room actually receives.
	watcher := &recordingSink{}
	h.Register("watcher", alice, watcher)
	h.Join("watcher", []uuid.UUID{room.ID})

	srv := httptest.NewServer(authAs(alice, NewHandler(h, tracker, data, zerolog.Nop())))
	defer srv.Close()

	conn := dialWS(t, srv.URL)

	// Typing before joining, then joining. Frames are processed in order,
	// so once the join lands the typing frame has been handled.
	typing := map[string]interface{}{"type": "typing.start", "room_id": room.ID.String()}
	if err := conn.WriteJSON(typing); err != nil {
		t.Fatal(err)
	}
	join := map[string]interface{}{"type": "join", "rooms": []string{room.ID.String()}}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return h.RoomSessionCount(room.ID) == 2 }, "session never joined the room")

	if got := watcher.Events(); len(got) != 0 {
		t.Fatalf("typing from an unjoined session reached the room: %+v", got)
	}

	if err := conn.WriteJSON(typing); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(watcher.Events()) == 1 }, "typing event never delivered")
	if ev := watcher.Events()[0]; ev.Type != hub.EventTypingStarted || ev.RoomID != room.ID {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestClientSendNeverBlocks(t *testing.T) {
	c := newClient("conn", nil, zerolog.Nop())

	for i := 0; i < sendBuffer; i++ {
		if err := c.Send(hub.Event{Type: hub.EventMessageCreated}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := c.Send(hub.Event{Type: hub.EventMessageCreated}); err != errBufferFull {
		t.Fatalf("expected buffer-full error, got %v", err)
	}

	close(c.done)
	if err := c.Send(hub.Event{Type: hub.EventMessageCreated}); err == nil {
		t.Fatal("send after close should fail")
	}
}
