// Package handlers implements the JWT-protected management surface.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/config"
	"github.com/promptwell/promptwell/internal/security"
)

// AuthHandler issues admin session tokens.
type AuthHandler struct {
	admin config.AdminConfig
	jwt   config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(admin config.AdminConfig, jwt config.JWTConfig) *AuthHandler {
	return &AuthHandler{admin: admin, jwt: jwt}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the configured admin credential and returns a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(h.admin.Username) == "" || h.admin.PasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login is not configured"})
		return
	}
	if req.Username != h.admin.Username || !security.CheckPassword(h.admin.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateAdminToken(h.jwt.Secret, req.Username, h.jwt.Expiry())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
