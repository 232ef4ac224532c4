package models

import "time"

// CreditEntry statuses.
const (
	// CreditStatusPending marks an entry granted but not yet usable.
	CreditStatusPending = "pending"
	// CreditStatusActive marks an entry that counts toward the balance.
	CreditStatusActive = "active"
	// CreditStatusDeleted marks an entry removed by an administrator.
	CreditStatusDeleted = "deleted"
	// CreditStatusExpired marks an entry past its expiration date.
	CreditStatusExpired = "expired"
)

// DefaultCreditTypes lists the credit types accepted when none are configured.
var DefaultCreditTypes = []string{
	"subscription", "paid", "free", "coupon", "gift", "reward", "discount", "bonus",
}

// CreditEntry represents a grant of credit to a user. Entries are never
// physically deleted; removal and expiry are status transitions so the
// audit trail stays intact.
type CreditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID     uint64 `gorm:"not null;index" json:"user_id"`                 // External user identity.
	CreditType string `gorm:"type:text;not null;index" json:"credit_type"`   // Grant category.
	TypeID     string `gorm:"type:text" json:"type_id,omitempty"`            // External correlation ID (order, subscription, ...).
	Status     string `gorm:"type:text;not null;index" json:"status"`        // pending, active, deleted or expired.

	AmountGranted  float64 `gorm:"type:decimal(20,10);not null" json:"amount_granted"`            // Units granted.
	AmountConsumed float64 `gorm:"type:decimal(20,10);not null;default:0" json:"amount_consumed"` // Units consumed so far.

	StartDate      time.Time  `gorm:"not null" json:"start_date"`         // When the grant becomes usable.
	ExpirationDate *time.Time `gorm:"index" json:"expiration_date"`       // Expiry, nil for non-expiring grants.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Remaining returns the unconsumed portion of the grant.
func (e *CreditEntry) Remaining() float64 {
	left := e.AmountGranted - e.AmountConsumed
	if left < 0 {
		return 0
	}
	return left
}
