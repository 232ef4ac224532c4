package models

import "time"

// BillingType defines how costs are calculated.
type BillingType int

// BillingType constants define pricing strategies.
const (
	// BillingTypePerRequest charges a flat price per completed request.
	BillingTypePerRequest BillingType = 1
	// BillingTypePerToken charges by token counts.
	BillingTypePerToken BillingType = 2
)

// BillingRule overrides the flat credit-unit conversion for a
// provider/model pair. Prices are in ledger units; token prices are per
// one million tokens.
type BillingRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider string `gorm:"type:varchar(255);index"` // Provider name filter, empty matches any.
	Model    string `gorm:"type:varchar(255);index"` // Model name filter, empty matches any.

	BillingType BillingType `gorm:"not null"` // Billing strategy.

	PricePerRequest  *float64 `gorm:"type:decimal(20,10)"` // Request-level price.
	PriceInputToken  *float64 `gorm:"type:decimal(20,10)"` // Input token price per million.
	PriceOutputToken *float64 `gorm:"type:decimal(20,10)"` // Output token price per million.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the rule is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
