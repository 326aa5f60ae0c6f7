package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/models"
)

// SendMessageRequest represents the send request body.
type SendMessageRequest struct {
	Content string      `json:"content"`
	Kind    models.Kind `json:"kind,omitempty"`
	ReplyTo string      `json:"reply_to,omitempty"`
}

// EditMessageRequest represents the edit request body.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// MessagesResponse represents a page of decrypted messages, oldest first.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// ListMessages returns a page of a room's history. Records that fail to
// decrypt come back with a sentinel body rather than breaking the page.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	messages, err := h.svc.List(r.Context(), roomID, limit, offset)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: messages, Count: len(messages)})
}

// SendMessage posts a new message to a room (authenticated).
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
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

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindText
	}

	msg, err := h.svc.Send(r.Context(), principal, roomID, req.Content, req.Kind, req.ReplyTo)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// EditMessage replaces a message body (sender only).
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.svc.Edit(r.Context(), principal, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, msg)
}

// DeleteMessage removes a message permanently (sender only).
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.svc.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
