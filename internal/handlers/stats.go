package handlers

import (
	"net/http"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalRooms     int64 `json:"total_rooms"`
	TotalMessages  int64 `json:"total_messages"`
	ActiveSessions int   `json:"active_sessions"`
}

// Stats returns aggregate platform statistics. Message bodies never
// appear here; everything reported is metadata.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalRooms, err := h.data.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.data.SumMessageCount(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sum messages")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalRooms:     totalRooms,
		TotalMessages:  totalMessages,
		ActiveSessions: h.hub.SessionCount(),
	})
}
