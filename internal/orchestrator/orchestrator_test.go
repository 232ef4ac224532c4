package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/billing"
	"github.com/promptwell/promptwell/internal/db"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/quota"
	"github.com/promptwell/promptwell/internal/settings"
	"github.com/promptwell/promptwell/internal/tracking"
)

type fixture struct {
	conn   *gorm.DB
	ledger *ledger.Ledger
	orch   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	creditLedger := ledger.New(conn, nil)
	orch := New(
		provider.NewRegistry(),
		quota.NewGuard(conn),
		tracking.NewTracker(conn),
		creditLedger,
		billing.NewCalculator(conn),
		nil,
	)
	return &fixture{conn: conn, ledger: creditLedger, orch: orch}
}

// configureOpenAI points the openai provider at a stub server and applies
// extra raw settings on top.
func configureOpenAI(t *testing.T, endpoint string, timeoutSeconds int, extra map[string]any) {
	t.Helper()
	values := map[string]json.RawMessage{}
	cfg := settings.ProviderConfig{
		Active:         true,
		Endpoint:       endpoint,
		APIKey:         "sk-test",
		Model:          "gpt-4o",
		TimeoutSeconds: timeoutSeconds,
	}
	payload, _ := json.Marshal(cfg)
	values[settings.ProviderOpenAIKey] = payload
	for key, value := range extra {
		raw, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			t.Fatalf("marshal setting %s: %v", key, errMarshal)
		}
		values[key] = raw
	}
	settings.StoreSnapshot(time.Now(), values)
	t.Cleanup(func() {
		settings.StoreSnapshot(time.Time{}, nil)
	})
}

func stubOpenAIServer(t *testing.T, content string, totalTokens int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"usage": map[string]any{
				"prompt_tokens":     totalTokens - 2,
				"completion_tokens": 2,
				"total_tokens":      totalTokens,
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func countTrackings(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.Tracking{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count trackings: %v", errCount)
	}
	return count
}

func TestProcessSuccessDebitsAndTracks(t *testing.T) {
	fx := newFixture(t)
	server := stubOpenAIServer(t, "generated text", 12)
	configureOpenAI(t, server.URL, 0, nil)

	ctx := context.Background()
	if _, errGrant := fx.ledger.Grant(ctx, 1, 100, "paid", "", nil); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	resp, reqErr := fx.orch.Process(ctx, Request{
		UserID:   1,
		Provider: "openai",
		Prompt:   provider.PlainPrompt("hello"),
		IP:       "203.0.113.9",
	})
	if reqErr != nil {
		t.Fatalf("process: %v", reqErr)
	}
	if resp.Content != "generated text" {
		t.Fatalf("content missing: %q", resp.Content)
	}
	if resp.Consumed != 12 {
		t.Fatalf("expected 12 units consumed, got %f", resp.Consumed)
	}
	if resp.RequestID == "" {
		t.Fatalf("request id missing")
	}

	balance, _ := fx.ledger.AvailableBalance(ctx, 1)
	if balance != 88 {
		t.Fatalf("expected balance 88, got %f", balance)
	}

	var row models.Tracking
	if errFind := fx.conn.First(&row, resp.TrackingID).Error; errFind != nil {
		t.Fatalf("find tracking: %v", errFind)
	}
	if row.Status != models.TrackingStatusCompleted {
		t.Fatalf("expected completed tracking, got %s", row.Status)
	}
	if row.Consumed != 12 {
		t.Fatalf("tracking consumed wrong: %f", row.Consumed)
	}
	if row.Response == nil || *row.Response != "generated text" {
		t.Fatalf("tracking response missing")
	}

	var meta map[string]any
	if errMeta := json.Unmarshal(row.MetaData, &meta); errMeta != nil {
		t.Fatalf("decode meta: %v", errMeta)
	}
	if meta["total_tokens"] != float64(12) {
		t.Fatalf("meta total_tokens wrong: %v", meta["total_tokens"])
	}
	if meta["request_id"] != resp.RequestID {
		t.Fatalf("meta request_id wrong")
	}
}

func TestProcessEmptyPromptNoTrackingRow(t *testing.T) {
	fx := newFixture(t)
	configureOpenAI(t, "http://127.0.0.1:0", 0, nil)

	_, reqErr := fx.orch.Process(context.Background(), Request{UserID: 1, Provider: "openai"})
	if reqErr == nil || reqErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", reqErr)
	}
	if countTrackings(t, fx.conn) != 0 {
		t.Fatalf("validation failure must not create a tracking row")
	}
}

func TestProcessUnknownProviderNoTrackingRow(t *testing.T) {
	fx := newFixture(t)
	configureOpenAI(t, "http://127.0.0.1:0", 0, nil)

	_, reqErr := fx.orch.Process(context.Background(), Request{
		UserID:   1,
		Provider: "mistral",
		Prompt:   provider.PlainPrompt("hello"),
	})
	if reqErr == nil || reqErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", reqErr)
	}
	if countTrackings(t, fx.conn) != 0 {
		t.Fatalf("unknown provider must not create a tracking row")
	}
}

func TestProcessQuotaDeniedNoTrackingRow(t *testing.T) {
	fx := newFixture(t)
	server := stubOpenAIServer(t, "x", 4)
	configureOpenAI(t, server.URL, 0, map[string]any{
		settings.RequestsPerDayKey: 1,
	})

	ctx := context.Background()
	seed := models.Tracking{UserID: 1, AIProvider: "openai", Prompt: "p", Status: models.TrackingStatusCompleted, CreatedAt: time.Now()}
	if errCreate := fx.conn.Create(&seed).Error; errCreate != nil {
		t.Fatalf("seed tracking: %v", errCreate)
	}

	_, reqErr := fx.orch.Process(ctx, Request{
		UserID:   1,
		Provider: "openai",
		Prompt:   provider.PlainPrompt("hello"),
	})
	if reqErr == nil || reqErr.Kind != KindQuotaDenied {
		t.Fatalf("expected quota denial, got %v", reqErr)
	}
	if countTrackings(t, fx.conn) != 1 {
		t.Fatalf("denied request must not create a tracking row")
	}
}

func TestProcessMaintenanceDenied(t *testing.T) {
	fx := newFixture(t)
	configureOpenAI(t, "http://127.0.0.1:0", 0, map[string]any{
		settings.MaintenanceKey: map[string]any{"active": true, "message": "back soon"},
	})

	_, reqErr := fx.orch.Process(context.Background(), Request{
		UserID:   1,
		Provider: "openai",
		Prompt:   provider.PlainPrompt("hello"),
	})
	if reqErr == nil || reqErr.Kind != KindMaintenance {
		t.Fatalf("expected maintenance denial, got %v", reqErr)
	}
	if reqErr.Detail != "back soon" {
		t.Fatalf("maintenance message not carried: %q", reqErr.Detail)
	}
}

func TestProcessTimeoutNoDebit(t *testing.T) {
	fx := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(server.Close)
	configureOpenAI(t, server.URL, 1, nil)

	ctx := context.Background()
	if _, errGrant := fx.ledger.Grant(ctx, 1, 100, "paid", "", nil); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	_, reqErr := fx.orch.Process(ctx, Request{
		UserID:   1,
		Provider: "openai",
		Prompt:   provider.PlainPrompt("hello"),
	})
	if reqErr == nil || reqErr.Kind != KindProviderError {
		t.Fatalf("expected provider error, got %v", reqErr)
	}

	balance, _ := fx.ledger.AvailableBalance(ctx, 1)
	if balance != 100 {
		t.Fatalf("failed request must not consume credits, balance %f", balance)
	}

	var row models.Tracking
	if errFind := fx.conn.Order("id DESC").First(&row).Error; errFind != nil {
		t.Fatalf("find tracking: %v", errFind)
	}
	if row.Status != models.TrackingStatusFailed {
		t.Fatalf("expected failed tracking, got %s", row.Status)
	}
	if row.Consumed != 0 {
		t.Fatalf("failed tracking must record zero consumption")
	}
}

func TestProcessInsufficientCreditsKeepsContent(t *testing.T) {
	fx := newFixture(t)
	server := stubOpenAIServer(t, "expensive answer", 50)
	configureOpenAI(t, server.URL, 0, nil)

	ctx := context.Background()
	if _, errGrant := fx.ledger.Grant(ctx, 1, 10, "paid", "", nil); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	resp, reqErr := fx.orch.Process(ctx, Request{
		UserID:   1,
		Provider: "openai",
		Prompt:   provider.PlainPrompt("hello"),
	})
	if reqErr == nil || reqErr.Kind != KindInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", reqErr)
	}
	if resp == nil || resp.Content != "expensive answer" {
		t.Fatalf("content must still be delivered when the debit fails")
	}

	balance, _ := fx.ledger.AvailableBalance(ctx, 1)
	if balance != 10 {
		t.Fatalf("balance must be untouched, got %f", balance)
	}

	var row models.Tracking
	if errFind := fx.conn.First(&row, resp.TrackingID).Error; errFind != nil {
		t.Fatalf("find tracking: %v", errFind)
	}
	if row.Status != models.TrackingStatusFailed {
		t.Fatalf("expected failed tracking, got %s", row.Status)
	}
	var meta map[string]any
	_ = json.Unmarshal(row.MetaData, &meta)
	if meta["debit_failed"] != "insufficient_credits" {
		t.Fatalf("meta missing debit failure marker: %v", meta)
	}
}

func TestProcessStructuredPromptWrongProvider(t *testing.T) {
	fx := newFixture(t)
	values := map[string]any{}
	configureOpenAI(t, "http://127.0.0.1:0", 0, values)
	claudeCfg, _ := json.Marshal(settings.ProviderConfig{Active: true, APIKey: "ak", Endpoint: "http://127.0.0.1:0"})
	openaiCfg, _ := json.Marshal(settings.ProviderConfig{Active: true, APIKey: "sk", Endpoint: "http://127.0.0.1:0"})
	settings.StoreSnapshot(time.Now(), map[string]json.RawMessage{
		settings.ProviderClaudeKey: claudeCfg,
		settings.ProviderOpenAIKey: openaiCfg,
	})

	_, reqErr := fx.orch.Process(context.Background(), Request{
		UserID:   1,
		Provider: "claude",
		Prompt:   provider.Prompt{System: "be brief", User: "hello"},
	})
	if reqErr == nil || reqErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", reqErr)
	}
	if countTrackings(t, fx.conn) != 0 {
		t.Fatalf("structured rejection must not create a tracking row")
	}
}
