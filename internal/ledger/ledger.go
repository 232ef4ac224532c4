// Package ledger maintains the append-only per-user credit ledger.
// Entries are only ever mutated by consumption or status transitions;
// nothing is physically deleted.
package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promptwell/promptwell/internal/events"
	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/settings"
)

// Ledger operation errors.
var (
	// ErrInvalidAmount indicates a non-positive grant or consume amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrUnknownCreditType indicates a grant type outside the configured set.
	ErrUnknownCreditType = errors.New("ledger: unknown credit type")
	// ErrInsufficientCredits indicates the available balance cannot cover a consume.
	ErrInsufficientCredits = errors.New("ledger: insufficient credits")
	// ErrEntryNotFound indicates a missing credit entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
)

// balanceEpsilon defines a tolerance for balance comparisons.
const balanceEpsilon = 0.000001

// Ledger provides grant, consume, balance and sweep operations over
// CreditEntry rows. Mutations for one user are serialized by a keyed mutex
// in addition to row locks, so engines without FOR UPDATE support (SQLite)
// keep the serializable read-modify-write contract.
type Ledger struct {
	db     *gorm.DB
	events events.Publisher

	// balances caches available balance per user; entries are deleted on
	// every mutation for that user, never trusted by age.
	balances *gocache.Cache

	mu        sync.Mutex
	userLocks map[uint64]*sync.Mutex

	sweepMu sync.Mutex
}

// New constructs a Ledger. The publisher may be nil-equivalent
// (events.NopPublisher) when no consumer is attached.
func New(db *gorm.DB, publisher events.Publisher) *Ledger {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Ledger{
		db:        db,
		events:    publisher,
		balances:  gocache.New(gocache.NoExpiration, 0),
		userLocks: make(map[uint64]*sync.Mutex),
	}
}

// userLock returns the mutex serializing ledger mutation for one user.
// Entries for different users are independent and never share a lock.
func (l *Ledger) userLock(userID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	return lock
}

func balanceKey(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

// Grant creates an active credit entry for a user.
func (l *Ledger) Grant(ctx context.Context, userID uint64, amount float64, creditType, typeID string, expiration *time.Time) (*models.CreditEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	creditType = strings.ToLower(strings.TrimSpace(creditType))
	if !isKnownCreditType(creditType) {
		return nil, ErrUnknownCreditType
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	entry := models.CreditEntry{
		UserID:         userID,
		CreditType:     creditType,
		TypeID:         strings.TrimSpace(typeID),
		Status:         models.CreditStatusActive,
		AmountGranted:  amount,
		StartDate:      now,
		ExpirationDate: expiration,
	}
	if errCreate := l.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return nil, errCreate
	}
	l.balances.Delete(balanceKey(userID))

	l.events.Publish(events.CreditAdded, map[string]any{
		"entry_id":    entry.ID,
		"user_id":     userID,
		"amount":      amount,
		"credit_type": creditType,
		"type_id":     entry.TypeID,
		"expires_at":  expiration,
	})
	return &entry, nil
}

// AvailableBalance returns the user's spendable balance: the sum of
// granted minus consumed over active, non-expired entries. The value is
// cached per user and invalidated on every mutation for that user.
func (l *Ledger) AvailableBalance(ctx context.Context, userID uint64) (float64, error) {
	if cached, ok := l.balances.Get(balanceKey(userID)); ok {
		if balance, ok := cached.(float64); ok {
			return balance, nil
		}
	}

	// The miss path holds the user's mutation lock so the sum and the
	// cache fill cannot straddle a concurrent consume's invalidation.
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := l.balances.Get(balanceKey(userID)); ok {
		if balance, ok := cached.(float64); ok {
			return balance, nil
		}
	}

	var balance float64
	errSum := l.db.WithContext(ctx).
		Model(&models.CreditEntry{}).
		Where("user_id = ? AND status = ?", userID, models.CreditStatusActive).
		Where("(expiration_date IS NULL OR expiration_date > ?)", time.Now().UTC()).
		Select("COALESCE(SUM(amount_granted - amount_consumed), 0)").
		Scan(&balance).Error
	if errSum != nil {
		return 0, errSum
	}
	l.balances.Set(balanceKey(userID), balance, gocache.NoExpiration)
	return balance, nil
}

// Consume debits amount from the user's entries, draining the ones closest
// to expiration first so the least credit is wasted to expiry. The debit is
// all-or-nothing: if the total available balance cannot cover the amount,
// nothing is consumed and ErrInsufficientCredits is returned.
func (l *Ledger) Consume(ctx context.Context, userID uint64, amount float64, note string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.CreditEntry
		if errFind := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ? AND amount_consumed < amount_granted", userID, models.CreditStatusActive).
			Where("(expiration_date IS NULL OR expiration_date > ?)", now).
			Order("CASE WHEN expiration_date IS NULL THEN 1 ELSE 0 END, expiration_date ASC, id ASC").
			Find(&entries).Error; errFind != nil {
			return errFind
		}

		total := 0.0
		for _, entry := range entries {
			total += entry.Remaining()
		}
		if total+balanceEpsilon < amount {
			return ErrInsufficientCredits
		}

		remaining := amount
		for _, entry := range entries {
			if remaining <= balanceEpsilon {
				break
			}
			deduct := entry.Remaining()
			if deduct > remaining {
				deduct = remaining
			}
			res := tx.Model(&models.CreditEntry{}).
				Where("id = ?", entry.ID).
				Updates(map[string]any{
					"amount_consumed": gorm.Expr("amount_consumed + ?", deduct),
					"updated_at":      now,
				})
			if res.Error != nil {
				return res.Error
			}
			remaining -= deduct
		}
		if remaining > balanceEpsilon {
			return errors.New("ledger: balance changed under lock")
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}

	l.balances.Delete(balanceKey(userID))
	if note != "" {
		log.Debugf("ledger: consumed %.4f from user %d (%s)", amount, userID, note)
	}
	return nil
}

// Remove transitions an entry to deleted. The row is kept for the audit
// trail; its remaining balance stops counting immediately.
func (l *Ledger) Remove(ctx context.Context, entryID uint64) error {
	var entry models.CreditEntry
	if errFind := l.db.WithContext(ctx).First(&entry, entryID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return errFind
	}
	if entry.Status == models.CreditStatusDeleted {
		return nil
	}

	lock := l.userLock(entry.UserID)
	lock.Lock()
	defer lock.Unlock()

	if errUpdate := l.db.WithContext(ctx).
		Model(&models.CreditEntry{}).
		Where("id = ?", entryID).
		Update("status", models.CreditStatusDeleted).Error; errUpdate != nil {
		return errUpdate
	}
	l.balances.Delete(balanceKey(entry.UserID))

	l.events.Publish(events.CreditRemoved, map[string]any{
		"entry_id":    entry.ID,
		"user_id":     entry.UserID,
		"amount_left": entry.Remaining(),
		"credit_type": entry.CreditType,
	})
	return nil
}

// Entries lists a user's credit entries, newest first.
func (l *Ledger) Entries(ctx context.Context, userID uint64) ([]models.CreditEntry, error) {
	var entries []models.CreditEntry
	errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&entries).Error
	return entries, errFind
}

// isKnownCreditType checks a type against the configured credit types.
func isKnownCreditType(creditType string) bool {
	if creditType == "" {
		return false
	}
	for _, known := range settings.CreditTypes() {
		if creditType == strings.ToLower(known) {
			return true
		}
	}
	return false
}
