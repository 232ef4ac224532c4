package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/provider"
)

// ProvidersHandler lists the providers available to callers.
type ProvidersHandler struct {
	registry *provider.Registry
}

// NewProvidersHandler constructs a ProvidersHandler.
func NewProvidersHandler(registry *provider.Registry) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

// List returns active providers with their model catalogs. Credentials
// never appear in the payload.
func (h *ProvidersHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.registry.Active()})
}
