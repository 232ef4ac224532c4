package ledger

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/promptwell/promptwell/internal/events"
	"github.com/promptwell/promptwell/internal/models"
)

// defaultSweepInterval is the cadence of the background expiry sweep.
const defaultSweepInterval = time.Hour

// SweepExpired transitions active entries past their expiration date to
// expired and invalidates affected balances. Runs are mutually exclusive
// with each other but not with grant/consume traffic: only entries already
// past expiry are touched, which consume never selects. Re-running after a
// completed sweep is a no-op.
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()

	now := time.Now().UTC()
	var expired []models.CreditEntry
	if errFind := l.db.WithContext(ctx).
		Where("status = ? AND expiration_date IS NOT NULL AND expiration_date <= ?", models.CreditStatusActive, now).
		Find(&expired).Error; errFind != nil {
		return 0, errFind
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]uint64, 0, len(expired))
	for _, entry := range expired {
		ids = append(ids, entry.ID)
	}
	if errUpdate := l.db.WithContext(ctx).
		Model(&models.CreditEntry{}).
		Where("id IN ? AND status = ?", ids, models.CreditStatusActive).
		Updates(map[string]any{"status": models.CreditStatusExpired, "updated_at": now}).Error; errUpdate != nil {
		return 0, errUpdate
	}

	touched := make(map[uint64]struct{}, len(expired))
	for _, entry := range expired {
		touched[entry.UserID] = struct{}{}
		l.events.Publish(events.CreditExpired, map[string]any{
			"entry_id":    entry.ID,
			"user_id":     entry.UserID,
			"amount_left": entry.Remaining(),
			"credit_type": entry.CreditType,
			"expired_at":  entry.ExpirationDate,
		})
	}
	for userID := range touched {
		l.balances.Delete(balanceKey(userID))
	}
	return len(expired), nil
}

// Sweeper runs the expiry sweep on a fixed interval.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
}

// NewSweeper constructs a background sweeper. A non-positive interval
// falls back to the hourly default.
func NewSweeper(ledger *Ledger, interval time.Duration) *Sweeper {
	if ledger == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{ledger: ledger, interval: interval}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("credit sweeper started (interval=%s)", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		count, errSweep := s.ledger.SweepExpired(ctx)
		if errSweep != nil {
			log.WithError(errSweep).Warn("credit sweeper: sweep failed")
		} else if count > 0 {
			log.Infof("credit sweeper: expired %d entries", count)
		}
		timer.Reset(s.interval)
	}
}
