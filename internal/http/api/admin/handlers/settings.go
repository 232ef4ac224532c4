package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/settings"
	"github.com/promptwell/promptwell/internal/util"
)

// SettingsHandler manages DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns all settings rows with provider API keys masked.
func (h *SettingsHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"key":        row.Key,
			"value":      maskSettingValue(row.Key, row.Value),
			"updated_at": row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

type setSettingRequest struct {
	Key   string          `json:"key" binding:"required"`
	Value json.RawMessage `json:"value" binding:"required"`
}

// Set upserts one setting and refreshes the in-memory snapshot, so the
// change applies to in-flight traffic without a restart.
func (h *SettingsHandler) Set(c *gin.Context) {
	var req setSettingRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if errSet := settings.Set(c.Request.Context(), h.db, req.Key, req.Value); errSet != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSet.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": strings.TrimSpace(req.Key), "updated": true})
}

// maskSettingValue hides provider API keys in listing responses.
func maskSettingValue(key string, value json.RawMessage) json.RawMessage {
	if !isProviderKey(key) {
		return value
	}
	var cfg map[string]any
	if errUnmarshal := json.Unmarshal(value, &cfg); errUnmarshal != nil {
		return value
	}
	if apiKey, ok := cfg["api_key"].(string); ok && apiKey != "" {
		cfg["api_key"] = util.HideAPIKey(apiKey)
	}
	masked, errMarshal := json.Marshal(cfg)
	if errMarshal != nil {
		return value
	}
	return masked
}

func isProviderKey(key string) bool {
	for _, providerKey := range settings.ProviderSettingKeys {
		if key == providerKey {
			return true
		}
	}
	return false
}
