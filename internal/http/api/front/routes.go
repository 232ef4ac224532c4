// Package front registers the API-key-authenticated routes.
package front

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	internalhttp "github.com/promptwell/promptwell/internal/http"
	"github.com/promptwell/promptwell/internal/http/api/front/handlers"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/orchestrator"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/tracking"
)

// RegisterFrontRoutes mounts the caller-facing API under /v1.
func RegisterFrontRoutes(engine *gin.Engine, db *gorm.DB, orch *orchestrator.Orchestrator, registry *provider.Registry, creditLedger *ledger.Ledger, tracker *tracking.Tracker) {
	requestHandler := handlers.NewRequestHandler(orch)
	providersHandler := handlers.NewProvidersHandler(registry)
	trackingsHandler := handlers.NewTrackingsHandler(tracker)
	balanceHandler := handlers.NewBalanceHandler(creditLedger)

	group := engine.Group("/v1", internalhttp.APIKeyAuthMiddleware(db))
	group.POST("/request", requestHandler.Generate)
	group.GET("/providers", providersHandler.List)
	group.GET("/trackings", trackingsHandler.List)
	group.GET("/trackings/:id", trackingsHandler.Get)
	group.GET("/balance", balanceHandler.Get)
	group.GET("/stats", trackingsHandler.Stats)
}
