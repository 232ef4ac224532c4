// Package admin registers the JWT-protected management routes.
package admin

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/config"
	internalhttp "github.com/promptwell/promptwell/internal/http"
	"github.com/promptwell/promptwell/internal/http/api/admin/handlers"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/tracking"
)

// RegisterAdminRoutes mounts the management API under /v0/admin.
func RegisterAdminRoutes(engine *gin.Engine, db *gorm.DB, creditLedger *ledger.Ledger, tracker *tracking.Tracker, adminCfg config.AdminConfig, jwtCfg config.JWTConfig) {
	authHandler := handlers.NewAuthHandler(adminCfg, jwtCfg)
	creditsHandler := handlers.NewCreditsHandler(creditLedger)
	trackingsHandler := handlers.NewTrackingsHandler(tracker)
	settingsHandler := handlers.NewSettingsHandler(db)
	apiKeysHandler := handlers.NewAPIKeysHandler(db)

	engine.POST("/v0/admin/login", authHandler.Login)

	group := engine.Group("/v0/admin", internalhttp.AdminAuthMiddleware(jwtCfg.Secret))
	group.POST("/credits", creditsHandler.Grant)
	group.GET("/credits", creditsHandler.List)
	group.DELETE("/credits/:id", creditsHandler.Remove)
	group.POST("/credits/sweep", creditsHandler.Sweep)
	group.GET("/trackings", trackingsHandler.List)
	group.GET("/settings", settingsHandler.List)
	group.PUT("/settings", settingsHandler.Set)
	group.POST("/api-keys", apiKeysHandler.Create)
	group.GET("/api-keys", apiKeysHandler.List)
	group.DELETE("/api-keys/:id", apiKeysHandler.Deactivate)
}
