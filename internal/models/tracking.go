package models

import (
	"time"

	"gorm.io/datatypes"
)

// Tracking statuses.
const (
	// TrackingStatusPending marks a request that has been dispatched but not finalized.
	TrackingStatusPending = "pending"
	// TrackingStatusCompleted marks a request that returned a result and was billed.
	TrackingStatusCompleted = "completed"
	// TrackingStatusFailed marks a request that failed or could not be billed.
	TrackingStatusFailed = "failed"
)

// Tracking response types.
const (
	ResponseTypeText  = "text"
	ResponseTypeImage = "image"
	ResponseTypeJSON  = "json"
)

// Tracking is the audit row for one attempted AI request. A row is created
// with status pending when dispatch begins and finalized exactly once when
// the provider call returns; it is never mutated afterward.
type Tracking struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID     uint64 `gorm:"not null;index" json:"user_id"`               // External user identity.
	AIProvider string `gorm:"column:ai_provider;type:text;not null;index" json:"ai_provider"` // Provider label, kept even if the provider is later removed.

	Prompt   string  `gorm:"type:text;not null" json:"prompt"` // Raw or JSON-encoded structured prompt.
	Response *string `gorm:"type:text" json:"response"`        // Normalized response content, nil when failed.

	Status       string  `gorm:"type:text;not null;index" json:"status"`         // pending, completed or failed.
	Consumed     float64 `gorm:"type:decimal(20,10);not null;default:0" json:"consumed"` // Ledger units charged; nonzero only when completed.
	ResponseType string  `gorm:"type:text;not null;default:text" json:"response_type"`   // text, image or json.
	IP           string  `gorm:"type:text" json:"ip"`                            // Caller IP.

	MetaData datatypes.JSON `gorm:"type:jsonb" json:"meta_data"` // Opaque detail: request id, model, latency, token counts, errors.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Dispatch timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`       // Finalization timestamp.
}
