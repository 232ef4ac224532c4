package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/db"
	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/settings"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func setUnitsPerToken(t *testing.T, ratio float64) {
	t.Helper()
	payload, _ := json.Marshal(ratio)
	settings.StoreSnapshot(time.Now(), map[string]json.RawMessage{
		settings.CreditUnitsPerTokenKey: payload,
	})
	t.Cleanup(func() {
		settings.StoreSnapshot(time.Time{}, nil)
	})
}

func floatPtr(v float64) *float64 { return &v }

func TestCostFlatConversion(t *testing.T) {
	calc := NewCalculator(openTestDB(t))
	setUnitsPerToken(t, 0.01)

	cost, errCost := calc.Cost(context.Background(), "openai", "gpt-4o", provider.Usage{TotalTokens: 1000})
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 10 {
		t.Fatalf("expected 10 units, got %f", cost)
	}
}

func TestCostMinimumOneUnit(t *testing.T) {
	calc := NewCalculator(openTestDB(t))
	setUnitsPerToken(t, 0.0001)

	cost, errCost := calc.Cost(context.Background(), "openai", "gpt-4o", provider.Usage{TotalTokens: 5})
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 1 {
		t.Fatalf("expected minimum 1 unit, got %f", cost)
	}
}

func TestCostZeroTokensIsFree(t *testing.T) {
	calc := NewCalculator(openTestDB(t))
	cost, errCost := calc.Cost(context.Background(), "openai", "gpt-4o", provider.Usage{})
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 0 {
		t.Fatalf("expected 0 for zero usage, got %f", cost)
	}
}

func TestCostPerRequestRule(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	rule := models.BillingRule{
		Provider:        "claude",
		BillingType:     models.BillingTypePerRequest,
		PricePerRequest: floatPtr(5),
		IsEnabled:       true,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	cost, errCost := calc.Cost(context.Background(), "claude", "claude-sonnet", provider.Usage{TotalTokens: 99999})
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 5 {
		t.Fatalf("expected flat 5 units, got %f", cost)
	}
}

func TestCostPerTokenRule(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	rule := models.BillingRule{
		Provider:         "openai",
		Model:            "gpt-4o",
		BillingType:      models.BillingTypePerToken,
		PriceInputToken:  floatPtr(2_000_000),
		PriceOutputToken: floatPtr(4_000_000),
		IsEnabled:        true,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	usage := provider.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
	cost, errCost := calc.Cost(context.Background(), "openai", "gpt-4o", usage)
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	// 100 * 2 + 50 * 4 = 400
	if cost != 400 {
		t.Fatalf("expected 400 units, got %f", cost)
	}
}

func TestCostRuleSpecificity(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	providerWide := models.BillingRule{
		Provider:        "openai",
		BillingType:     models.BillingTypePerRequest,
		PricePerRequest: floatPtr(2),
		IsEnabled:       true,
	}
	exact := models.BillingRule{
		Provider:        "openai",
		Model:           "gpt-4o",
		BillingType:     models.BillingTypePerRequest,
		PricePerRequest: floatPtr(7),
		IsEnabled:       true,
	}
	if errCreate := conn.Create(&providerWide).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}
	if errCreate := conn.Create(&exact).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	cost, _ := calc.Cost(context.Background(), "openai", "gpt-4o", provider.Usage{TotalTokens: 10})
	if cost != 7 {
		t.Fatalf("exact rule should win, got %f", cost)
	}
	cost, _ = calc.Cost(context.Background(), "openai", "gpt-4o-mini", provider.Usage{TotalTokens: 10})
	if cost != 2 {
		t.Fatalf("provider-wide rule should apply, got %f", cost)
	}
}

func TestCostDisabledRuleIgnored(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)
	setUnitsPerToken(t, 1)

	rule := models.BillingRule{
		Provider:        "gemini",
		BillingType:     models.BillingTypePerRequest,
		PricePerRequest: floatPtr(100),
		IsEnabled:       false,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}
	// gorm skips zero-valued fields that carry a default, so the insert above
	// stores is_enabled=true; flip it explicitly to get a genuinely disabled rule.
	if errOff := conn.Model(&models.BillingRule{}).Where("id = ?", rule.ID).Update("is_enabled", false).Error; errOff != nil {
		t.Fatalf("disable rule: %v", errOff)
	}

	cost, _ := calc.Cost(context.Background(), "gemini", "gemini-pro", provider.Usage{TotalTokens: 3})
	if cost != 3 {
		t.Fatalf("disabled rule should be ignored, got %f", cost)
	}
}
