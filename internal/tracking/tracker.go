// Package tracking records an audit row for every billable AI request
// attempt, successful or not. It never mutates the credit ledger.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
)

// Tracker errors.
var (
	// ErrNotFound indicates a missing tracking row.
	ErrNotFound = errors.New("tracking: record not found")
	// ErrAlreadyFinalized indicates a second finalize on the same row.
	ErrAlreadyFinalized = errors.New("tracking: record already finalized")
)

// Tracker persists and queries Tracking rows.
type Tracker struct {
	db *gorm.DB
}

// NewTracker constructs a Tracker.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// Begin writes a pending row at the moment dispatch is about to occur, so
// a crash mid-call stays visible in the audit trail.
func (t *Tracker) Begin(ctx context.Context, userID uint64, providerID, prompt, responseType, ip string, meta map[string]any) (uint64, error) {
	if responseType == "" {
		responseType = models.ResponseTypeText
	}
	row := models.Tracking{
		UserID:       userID,
		AIProvider:   providerID,
		Prompt:       prompt,
		Status:       models.TrackingStatusPending,
		ResponseType: responseType,
		IP:           ip,
		MetaData:     encodeMeta(meta),
		CreatedAt:    time.Now().UTC(),
	}
	if errCreate := t.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return 0, errCreate
	}
	return row.ID, nil
}

// FinalizeParams carries the terminal state for one tracking row.
type FinalizeParams struct {
	Status   string
	Response *string
	Consumed float64
	Meta     map[string]any
}

// Finalize moves a pending row to its terminal status exactly once.
// Finalizing an already-terminal row fails with ErrAlreadyFinalized.
func (t *Tracker) Finalize(ctx context.Context, id uint64, params FinalizeParams) error {
	if params.Status != models.TrackingStatusCompleted && params.Status != models.TrackingStatusFailed {
		return errors.New("tracking: finalize status must be completed or failed")
	}
	updates := map[string]any{
		"status":     params.Status,
		"response":   params.Response,
		"consumed":   params.Consumed,
		"updated_at": time.Now().UTC(),
	}
	if params.Meta != nil {
		updates["meta_data"] = encodeMeta(params.Meta)
	}

	res := t.db.WithContext(ctx).
		Model(&models.Tracking{}).
		Where("id = ? AND status = ?", id, models.TrackingStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if errCount := t.db.WithContext(ctx).Model(&models.Tracking{}).Where("id = ?", id).Count(&exists).Error; errCount == nil && exists == 0 {
			return ErrNotFound
		}
		return ErrAlreadyFinalized
	}
	return nil
}

// ListFilters narrows List results.
type ListFilters struct {
	Provider string
	Status   string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// List returns a user's tracking rows, newest first. A zero userID lists
// across users (admin audit path).
func (t *Tracker) List(ctx context.Context, userID uint64, filters ListFilters) ([]models.Tracking, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	q := t.db.WithContext(ctx).Model(&models.Tracking{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if provider := strings.TrimSpace(filters.Provider); provider != "" {
		q = q.Where("ai_provider = ?", provider)
	}
	if status := strings.TrimSpace(filters.Status); status != "" {
		q = q.Where("status = ?", status)
	}
	if filters.From != nil {
		q = q.Where("created_at >= ?", filters.From.UTC())
	}
	if filters.To != nil {
		q = q.Where("created_at <= ?", filters.To.UTC())
	}

	var rows []models.Tracking
	errFind := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, errFind
}

// Get returns one tracking row by ID.
func (t *Tracker) Get(ctx context.Context, id uint64) (*models.Tracking, error) {
	var row models.Tracking
	if errFirst := t.db.WithContext(ctx).First(&row, id).Error; errFirst != nil {
		if errors.Is(errFirst, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFirst
	}
	return &row, nil
}

// Stats aggregates a user's request counts.
type Stats struct {
	Total      int64            `json:"total"`
	Today      int64            `json:"today"`
	Week       int64            `json:"week"`
	Month      int64            `json:"month"`
	ByProvider map[string]int64 `json:"by_provider"`
}

// UserStats computes attempt counts for one user over common windows.
func (t *Tracker) UserStats(ctx context.Context, userID uint64) (*Stats, error) {
	localNow := time.Now().In(time.Local)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.Local)

	stats := &Stats{ByProvider: map[string]int64{}}

	base := func() *gorm.DB {
		return t.db.WithContext(ctx).Model(&models.Tracking{}).Where("user_id = ?", userID)
	}
	if errCount := base().Count(&stats.Total).Error; errCount != nil {
		return nil, errCount
	}
	if errCount := base().Where("created_at >= ?", todayStart).Count(&stats.Today).Error; errCount != nil {
		return nil, errCount
	}
	if errCount := base().Where("created_at >= ?", todayStart.AddDate(0, 0, -6)).Count(&stats.Week).Error; errCount != nil {
		return nil, errCount
	}
	if errCount := base().Where("created_at >= ?", todayStart.AddDate(0, -1, 0)).Count(&stats.Month).Error; errCount != nil {
		return nil, errCount
	}

	var grouped []struct {
		AIProvider string `gorm:"column:ai_provider"`
		Count      int64
	}
	if errGroup := base().
		Select("ai_provider, COUNT(*) AS count").
		Group("ai_provider").
		Scan(&grouped).Error; errGroup != nil {
		return nil, errGroup
	}
	for _, row := range grouped {
		stats.ByProvider[row.AIProvider] = row.Count
	}
	return stats, nil
}

// encodeMeta marshals opaque metadata; a failed marshal stores nothing
// rather than failing the tracking write.
func encodeMeta(meta map[string]any) datatypes.JSON {
	if len(meta) == 0 {
		return nil
	}
	payload, errMarshal := json.Marshal(meta)
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(payload)
}
