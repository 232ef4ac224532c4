// Package quota gates requests on the daily cap and the maintenance window
// before any provider dispatch happens.
package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/settings"
)

// Denial reasons.
const (
	// ReasonOverQuota marks a user past the daily request cap.
	ReasonOverQuota = "over_quota"
	// ReasonMaintenance marks a request inside an active maintenance window.
	ReasonMaintenance = "maintenance_mode"
)

// defaultMaintenanceMessage is returned when no message is configured.
const defaultMaintenanceMessage = "service is under maintenance"

// DeniedError reports why a request was denied before dispatch.
type DeniedError struct {
	Reason  string
	Message string
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("denied (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("denied (%s)", e.Reason)
}

// Guard enforces maintenance gating and the per-user daily request cap.
type Guard struct {
	db *gorm.DB
}

// NewGuard constructs a Guard.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// Check returns nil when the user may dispatch a request, or *DeniedError
// with the denial reason. The quota count is advisory: it holds no lock, so
// concurrent requests can exceed the cap by at most the concurrency level.
func (g *Guard) Check(ctx context.Context, userID uint64, role string) error {
	now := time.Now()

	if m := settings.MaintenanceConfig(); maintenanceActive(m, now) && !roleExcluded(m, role) {
		message := strings.TrimSpace(m.Message)
		if message == "" {
			message = defaultMaintenanceMessage
		}
		return &DeniedError{Reason: ReasonMaintenance, Message: message}
	}

	limit := settings.RequestsPerDay()
	if limit <= 0 {
		return nil
	}

	count, errCount := g.completedToday(ctx, userID, now)
	if errCount != nil {
		return errCount
	}
	if count >= int64(limit) {
		return &DeniedError{
			Reason:  ReasonOverQuota,
			Message: fmt.Sprintf("daily request limit of %d reached", limit),
		}
	}
	return nil
}

// completedToday counts the user's completed requests since local midnight.
func (g *Guard) completedToday(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	localNow := now.In(time.Local)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.Local)

	var count int64
	errCount := g.db.WithContext(ctx).
		Model(&models.Tracking{}).
		Where("user_id = ? AND status = ? AND created_at >= ?", userID, models.TrackingStatusCompleted, todayStart).
		Count(&count).Error
	return count, errCount
}

// maintenanceActive reports whether now falls inside the configured window.
// A missing end date means the window is open-ended.
func maintenanceActive(m settings.Maintenance, now time.Time) bool {
	if !m.Active {
		return false
	}
	if m.StartDate != nil && now.Before(*m.StartDate) {
		return false
	}
	if m.EndDate != nil && now.After(*m.EndDate) {
		return false
	}
	return true
}

// roleExcluded reports whether the caller's role bypasses maintenance.
func roleExcluded(m settings.Maintenance, role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, excluded := range m.ExcludedRoles {
		if role == strings.ToLower(strings.TrimSpace(excluded)) {
			return true
		}
	}
	return false
}
