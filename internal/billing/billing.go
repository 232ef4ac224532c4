// Package billing converts provider usage into ledger credit units.
package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/settings"
)

// tokensPerMillion scales the per-million token prices on billing rules.
const tokensPerMillion = 1_000_000

// Calculator prices completed requests. Rules are read per call so admin
// edits apply without restart.
type Calculator struct {
	db *gorm.DB
}

// NewCalculator constructs a Calculator.
func NewCalculator(db *gorm.DB) *Calculator {
	return &Calculator{db: db}
}

// Cost returns the credit units to debit for one completed request. A
// matching billing rule takes precedence; otherwise the flat per-token
// conversion from settings applies. The result is rounded half up and a
// completed request with any token usage always costs at least one unit.
func (c *Calculator) Cost(ctx context.Context, providerID, model string, usage provider.Usage) (float64, error) {
	rule, errRule := c.selectRule(ctx, providerID, model)
	if errRule != nil {
		return 0, errRule
	}

	var cost float64
	if rule != nil {
		cost = ruleCost(rule, usage)
	} else {
		cost = settings.CreditUnitsPerToken() * float64(usage.TotalTokens)
	}

	cost = math.Floor(cost + 0.5)
	if cost < 1 && usage.TotalTokens > 0 {
		cost = 1
	}
	return cost, nil
}

// selectRule loads enabled rules for the provider and picks the most
// specific match: provider+model beats provider-wide, which beats a
// catch-all rule. Ties go to the most recently updated rule.
func (c *Calculator) selectRule(ctx context.Context, providerID, model string) (*models.BillingRule, error) {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	model = strings.TrimSpace(model)

	var rules []models.BillingRule
	if errFind := c.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Where("provider = ? OR provider = ''", providerID).
		Find(&rules).Error; errFind != nil {
		return nil, errFind
	}

	bestPriority := -1
	bestUpdatedAt := time.Time{}
	var best *models.BillingRule

	consider := func(r *models.BillingRule, priority int) {
		if priority > bestPriority {
			bestPriority = priority
			bestUpdatedAt = r.UpdatedAt
			best = r
			return
		}
		if priority < bestPriority {
			return
		}
		if r.UpdatedAt.After(bestUpdatedAt) {
			bestUpdatedAt = r.UpdatedAt
			best = r
			return
		}
		if r.UpdatedAt.Equal(bestUpdatedAt) && best != nil && r.ID > best.ID {
			best = r
		}
	}

	for i := range rules {
		r := &rules[i]
		rProvider := strings.ToLower(strings.TrimSpace(r.Provider))
		rModel := strings.TrimSpace(r.Model)

		switch {
		case rProvider == providerID && rModel == model:
			consider(r, 3)
		case rProvider == providerID && rModel == "":
			consider(r, 2)
		case rProvider == "" && rModel == "":
			consider(r, 0)
		}
	}
	return best, nil
}

// ruleCost applies one billing rule to a usage record.
func ruleCost(rule *models.BillingRule, usage provider.Usage) float64 {
	switch rule.BillingType {
	case models.BillingTypePerRequest:
		if rule.PricePerRequest != nil {
			return *rule.PricePerRequest
		}
		return 0
	case models.BillingTypePerToken:
		var cost float64
		if rule.PriceInputToken != nil {
			cost += *rule.PriceInputToken * float64(usage.PromptTokens) / tokensPerMillion
		}
		if rule.PriceOutputToken != nil {
			cost += *rule.PriceOutputToken * float64(usage.CompletionTokens) / tokensPerMillion
		}
		return cost
	default:
		return 0
	}
}
