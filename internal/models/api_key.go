package models

import "time"

// APIKey maps an inbound bearer key to the external user identity owned by
// the host system. The role is consulted by the maintenance-mode gate.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID uint64 `gorm:"not null;index" json:"user_id"` // External user identity.

	Name string `gorm:"type:text;not null" json:"name"`            // Display name for the key.
	Key  string `gorm:"type:text;not null;uniqueIndex" json:"key"` // Full API key string.
	Role string `gorm:"type:text" json:"role"`                     // Host-side role, e.g. administrator.

	Active     bool       `gorm:"not null;default:true" json:"active"` // Whether the key is enabled.
	LastUsedAt *time.Time `json:"last_used_at"`                        // Last successful usage time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
