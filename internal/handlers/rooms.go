package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/models"
)

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"is_private"`
	Passphrase  string `json:"passphrase,omitempty"` // required for private rooms
}

// JoinRoomRequest represents the join request body.
type JoinRoomRequest struct {
	Passphrase string `json:"passphrase,omitempty"`
}

// RoomResponse represents a room in API responses. The encryption key
// never appears here.
type RoomResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsPrivate    bool      `json:"is_private"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Participants int       `json:"participants"`
	MessageCount int64     `json:"message_count"`
}

func roomResponse(room *models.Room) RoomResponse {
	return RoomResponse{
		ID:           room.ID.String(),
		Name:         room.Name,
		Description:  room.Description,
		IsPrivate:    room.IsPrivate,
		CreatedBy:    room.CreatedBy.String(),
		CreatedAt:    room.CreatedAt,
		Participants: len(room.Participants),
		MessageCount: room.MessageCount,
	}
}

// CreateRoom handles room creation (authenticated).
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	room, err := h.svc.CreateRoom(r.Context(), principal, req.Name, req.Description, req.IsPrivate, req.Passphrase)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, roomResponse(room))
}

// ListRooms returns the rooms the principal participates in, newest first.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rooms, err := h.svc.Rooms(r.Context(), principal)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	resp := make([]RoomResponse, 0, len(rooms))
	for i := range rooms {
		resp = append(resp, roomResponse(&rooms[i]))
	}
	h.JSON(w, http.StatusOK, resp)
}

// GetRoom returns a single room by ID.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	room, err := h.svc.Room(r.Context(), roomID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, roomResponse(room))
}

// JoinRoom adds the principal to a room's participants. Private rooms
// require the passphrase chosen at creation.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	var req JoinRoomRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if err := h.svc.JoinRoom(r.Context(), principal, roomID, req.Passphrase); err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "joined"})
}
