package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/security"
	"github.com/promptwell/promptwell/internal/util"
)

// APIKeysHandler manages caller API keys.
type APIKeysHandler struct {
	db *gorm.DB
}

// NewAPIKeysHandler constructs an APIKeysHandler.
func NewAPIKeysHandler(db *gorm.DB) *APIKeysHandler {
	return &APIKeysHandler{db: db}
}

type createAPIKeyRequest struct {
	UserID uint64 `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Create issues a new API key. The plaintext key appears only in this
// response; listings mask it.
func (h *APIKeysHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "key generation failed"})
		return
	}
	row := models.APIKey{
		UserID: req.UserID,
		Name:   req.Name,
		Key:    key,
		Role:   req.Role,
		Active: true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      row.ID,
		"user_id": row.UserID,
		"name":    row.Name,
		"role":    row.Role,
		"key":     key,
	})
}

// List returns API keys, masked, optionally filtered by user.
func (h *APIKeysHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{})
	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, errParse := strconv.ParseUint(userIDStr, 10, 64); errParse == nil {
			q = q.Where("user_id = ?", userID)
		}
	}
	var rows []models.APIKey
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"user_id":      row.UserID,
			"name":         row.Name,
			"role":         row.Role,
			"key":          util.HideAPIKey(row.Key),
			"active":       row.Active,
			"last_used_at": row.LastUsedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// Deactivate disables an API key without deleting its row.
func (h *APIKeysHandler) Deactivate(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}
