// Package app boots the service: database, settings snapshot, component
// wiring and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/promptwell/promptwell/internal/billing"
	"github.com/promptwell/promptwell/internal/config"
	"github.com/promptwell/promptwell/internal/db"
	"github.com/promptwell/promptwell/internal/events"
	adminapi "github.com/promptwell/promptwell/internal/http/api/admin"
	"github.com/promptwell/promptwell/internal/http/api/front"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/orchestrator"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/quota"
	"github.com/promptwell/promptwell/internal/settings"
	"github.com/promptwell/promptwell/internal/tracking"
)

// shutdownGrace bounds graceful HTTP shutdown on termination.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs schema migrations.
func Migrate(ctx context.Context, cfg *config.AppConfig) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the full service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.AppConfig) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	bus := events.NewBus()
	defer bus.Close()

	registry := provider.NewRegistry()
	creditLedger := ledger.New(conn, bus)
	guard := quota.NewGuard(conn)
	tracker := tracking.NewTracker(conn)
	calc := billing.NewCalculator(conn)
	orch := orchestrator.New(registry, guard, tracker, creditLedger, calc, bus)

	ledger.NewSweeper(creditLedger, cfg.SweepInterval()).Start(ctx)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	front.RegisterFrontRoutes(engine, conn, orch, registry, creditLedger, tracker)
	adminapi.RegisterAdminRoutes(engine, conn, creditLedger, tracker, cfg.Admin, cfg.JWT)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
