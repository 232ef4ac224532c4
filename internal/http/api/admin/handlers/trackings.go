package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/tracking"
)

// TrackingsHandler lists request records across all users for auditing.
type TrackingsHandler struct {
	tracker *tracking.Tracker
}

// NewTrackingsHandler constructs a TrackingsHandler.
func NewTrackingsHandler(tracker *tracking.Tracker) *TrackingsHandler {
	return &TrackingsHandler{tracker: tracker}
}

// List returns tracking records with optional filters.
func (h *TrackingsHandler) List(c *gin.Context) {
	var userID uint64
	if userIDStr := strings.TrimSpace(c.Query("user_id")); userIDStr != "" {
		if id, errParse := strconv.ParseUint(userIDStr, 10, 64); errParse == nil {
			userID = id
		}
	}

	filters := tracking.ListFilters{
		Provider: strings.TrimSpace(c.Query("provider")),
		Status:   strings.TrimSpace(c.Query("status")),
	}
	if fromStr := strings.TrimSpace(c.Query("from")); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filters.From = &t
		}
	}
	if toStr := strings.TrimSpace(c.Query("to")); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			filters.To = &t
		}
	}
	if limitStr := strings.TrimSpace(c.Query("limit")); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			filters.Limit = v
		}
	}

	rows, errList := h.tracker.List(c.Request.Context(), userID, filters)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trackings": rows})
}
