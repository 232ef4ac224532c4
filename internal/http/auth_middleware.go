// Package http wires the gin router, middleware and API handlers.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/security"
)

// APIKeyAuthMiddleware authenticates bearer API keys against the api_keys
// table and stashes the caller identity on the gin context.
func APIKeyAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearerToken(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		var apiKey models.APIKey
		errFind := db.WithContext(c.Request.Context()).
			Where("key = ? AND active = ?", key, true).
			First(&apiKey).Error
		if errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set("userID", apiKey.UserID)
		c.Set("role", apiKey.Role)
		c.Set("apiKeyID", apiKey.ID)

		now := time.Now().UTC()
		if errTouch := db.WithContext(c.Request.Context()).
			Model(&models.APIKey{}).
			Where("id = ?", apiKey.ID).
			Update("last_used_at", now).Error; errTouch != nil {
			log.WithError(errTouch).Debug("api key last_used_at update failed")
		}

		c.Next()
	}
}

// AdminAuthMiddleware enforces a valid admin JWT on management routes.
func AdminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errParse := security.ParseAdminToken(secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("adminUser", claims.Username)
		c.Next()
	}
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}
