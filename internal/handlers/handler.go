package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cipherroom/cipherroom/internal/chat"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/models"
	"github.com/cipherroom/cipherroom/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc    *chat.Service
	hub    *hub.Hub
	data   store.DataStore
	msgLog store.MessageLog
}

// NewHandler creates a new Handler.
func NewHandler(svc *chat.Service, h *hub.Hub, data store.DataStore, msgLog store.MessageLog) *Handler {
	return &Handler{svc: svc, hub: h, data: data, msgLog: msgLog}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// serviceError maps domain errors onto HTTP responses. Anything
// unrecognized is a 500 with a generic body; the cause stays in the logs.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		h.Error(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, models.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrUnauthorized):
		h.Error(w, http.StatusForbidden, "forbidden")
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
