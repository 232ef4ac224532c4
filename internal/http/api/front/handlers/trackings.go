package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/tracking"
)

// TrackingsHandler serves a user's request history.
type TrackingsHandler struct {
	tracker *tracking.Tracker
}

// NewTrackingsHandler constructs a TrackingsHandler.
func NewTrackingsHandler(tracker *tracking.Tracker) *TrackingsHandler {
	return &TrackingsHandler{tracker: tracker}
}

// List returns the caller's tracking rows with optional filters.
func (h *TrackingsHandler) List(c *gin.Context) {
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

	rows, errList := h.tracker.List(c.Request.Context(), getUserID(c), filters)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trackings": rows})
}

// Get returns one tracking row owned by the caller.
func (h *TrackingsHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tracking id"})
		return
	}
	row, errGet := h.tracker.Get(c.Request.Context(), id)
	if errGet != nil {
		if errors.Is(errGet, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if row.UserID != getUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracking not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}

// Stats returns the caller's request counts over common windows.
func (h *TrackingsHandler) Stats(c *gin.Context) {
	stats, errStats := h.tracker.UserStats(c.Request.Context(), getUserID(c))
	if errStats != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
