package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/api"
	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/chat"
	"github.com/cipherroom/cipherroom/internal/handlers"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/keyring"
	"github.com/cipherroom/cipherroom/internal/store"
	"github.com/cipherroom/cipherroom/internal/ws"
)

const testSecret = "handlers-test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	dataStore := store.NewMemoryStore()
	msgLog := store.NewMemoryLog()
	h := hub.New(zerolog.Nop())
	tracker := hub.NewTracker(h, time.Second, zerolog.Nop())
	svc := chat.NewService(dataStore, msgLog, keyring.New(dataStore), h, zerolog.Nop())

	router := api.NewRouter(api.Deps{
		Logger:    zerolog.Nop(),
		Handler:   handlers.NewHandler(svc, h, dataStore, msgLog),
		WSHandler: ws.NewHandler(h, tracker, dataStore, zerolog.Nop()),
		Auth:      middleware.NewAuthMiddleware(testSecret),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, h
}

func mintToken(t *testing.T, userID uuid.UUID, name string) string {
	t.Helper()
	claims := middleware.TokenClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatal(err)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/rooms", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/rooms", "not-a-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", resp.StatusCode)
	}
}

func TestRoomAndMessageLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	userA := uuid.New()
	tokenA := mintToken(t, userA, "alice")

	// Create a room
	resp := doJSON(t, http.MethodPost, srv.URL+"/rooms", tokenA, map[string]interface{}{
		"name": "general",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d", resp.StatusCode)
	}
	var room handlers.RoomResponse
	decode(t, resp, &room)
	if room.Name != "general" || room.CreatedBy != userA.String() {
		t.Fatalf("unexpected room: %+v", room)
	}

	// Creator sees it in their room list
	resp = doJSON(t, http.MethodGet, srv.URL+"/rooms", tokenA, nil)
	var rooms []handlers.RoomResponse
	decode(t, resp, &rooms)
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Fatalf("unexpected room list: %+v", rooms)
	}

	// Send a message
	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, map[string]interface{}{
		"content": "hello",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d", resp.StatusCode)
	}
	var sent struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		TS      int64  `json:"ts"`
	}
	decode(t, resp, &sent)
	if sent.Content != "hello" || sent.ID == "" || sent.TS == 0 {
		t.Fatalf("unexpected send response: %+v", sent)
	}

	// History decrypts back to the plaintext
	resp = doJSON(t, http.MethodGet, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, nil)
	var page handlers.MessagesResponse
	decode(t, resp, &page)
	if page.Count != 1 || page.Messages[0].Content != "hello" || page.Messages[0].SenderName != "alice" {
		t.Fatalf("unexpected history: %+v", page)
	}

	// Edit the message
	resp = doJSON(t, http.MethodPatch, srv.URL+"/messages/"+sent.ID, tokenA, map[string]interface{}{
		"content": "hello, edited",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete the message
	resp = doJSON(t, http.MethodDelete, srv.URL+"/messages/"+sent.ID, tokenA, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, nil)
	decode(t, resp, &page)
	if page.Count != 0 {
		t.Fatalf("expected empty history after delete, got %d", page.Count)
	}
}

func TestValidationAndAuthorizationStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	userA, userB := uuid.New(), uuid.New()
	tokenA := mintToken(t, userA, "alice")
	tokenB := mintToken(t, userB, "bob")

	resp := doJSON(t, http.MethodPost, srv.URL+"/rooms", tokenA, map[string]interface{}{"name": "general"})
	var room handlers.RoomResponse
	decode(t, resp, &room)

	// Empty content is a validation error
	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, map[string]interface{}{
		"content": "",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty content: expected 422, got %d", resp.StatusCode)
	}

	// Unknown room is 404
	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+uuid.NewString()+"/messages", tokenA, map[string]interface{}{
		"content": "hi",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", resp.StatusCode)
	}

	// Another user cannot edit the message
	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, map[string]interface{}{
		"content": "mine",
	})
	var sent struct {
		ID string `json:"id"`
	}
	decode(t, resp, &sent)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/messages/"+sent.ID, tokenB, map[string]interface{}{
		"content": "hijacked",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign edit: expected 403, got %d", resp.StatusCode)
	}
}

func TestPrivateRoomJoin(t *testing.T) {
	srv, _ := newTestServer(t)
	userA, userB := uuid.New(), uuid.New()
	tokenA := mintToken(t, userA, "alice")
	tokenB := mintToken(t, userB, "bob")

	resp := doJSON(t, http.MethodPost, srv.URL+"/rooms", tokenA, map[string]interface{}{
		"name":       "vault",
		"is_private": true,
		"passphrase": "a very long passphrase",
	})
	var room handlers.RoomResponse
	decode(t, resp, &room)

	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/join", tokenB, map[string]interface{}{
		"passphrase": "wrong wrong wrong!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong passphrase: expected 403, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/join", tokenB, map[string]interface{}{
		"passphrase": "a very long passphrase",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthAndStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health handlers.HealthResponse
	decode(t, resp, &health)
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %+v", health)
	}

	tokenA := mintToken(t, uuid.New(), "alice")
	for i := 0; i < 2; i++ {
		r := doJSON(t, http.MethodPost, srv.URL+"/rooms", tokenA, map[string]interface{}{
			"name": fmt.Sprintf("room-%d", i),
		})
		r.Body.Close()
	}

	resp, err = http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats handlers.StatsResponse
	decode(t, resp, &stats)
	if stats.TotalRooms != 2 {
		t.Fatalf("expected 2 rooms in stats, got %d", stats.TotalRooms)
	}
}

// The upgrade has to hijack the connection through the full middleware
// stack, and a joined session must see messages sent over REST.
func TestWebSocketThroughRouter(t *testing.T) {
	srv, h := newTestServer(t)
	userA := uuid.New()
	tokenA := mintToken(t, userA, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/rooms", tokenA, map[string]interface{}{
		"name": "general",
	})
	var room handlers.RoomResponse
	decode(t, resp, &room)
	roomID := uuid.MustParse(room.ID)

	// Browser clients cannot set headers on the upgrade request, so the
	// token travels as a query parameter.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tokenA
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial through router: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]interface{}{
		"type":  "join",
		"rooms": []string{room.ID},
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.RoomSessionCount(roomID) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if h.RoomSessionCount(roomID) == 0 {
		t.Fatal("join frame never processed")
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room.ID+"/messages", tokenA, map[string]interface{}{
		"content": "hello live",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type    string `json:"type"`
		RoomID  string `json:"room_id"`
		Payload struct {
			Content string `json:"content"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "message.created" || frame.RoomID != room.ID {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.Payload.Content != "hello live" {
		t.Fatalf("expected plaintext content in the event, got %q", frame.Payload.Content)
	}
}
