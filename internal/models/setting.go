package models

import (
	"encoding/json"
	"time"
)

// Setting is one row of the runtime key/value configuration store. Values
// are opaque JSON here; typed access goes through the settings snapshot.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Settings key, e.g. PROVIDER_OPENAI.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // Raw JSON payload.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Write timestamp.
}
