package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/promptwell/promptwell/internal/config"
	"github.com/promptwell/promptwell/internal/db"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/security"
	"github.com/promptwell/promptwell/internal/tracking"
)

type fixture struct {
	conn   *gorm.DB
	engine *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	passwordHash, errHash := security.HashPassword("admin-pass")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}

	engine := gin.New()
	RegisterAdminRoutes(engine, conn, ledger.New(conn, nil), tracking.NewTracker(conn),
		config.AdminConfig{Username: "root", PasswordHash: passwordHash},
		config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 5},
	)
	return &fixture{conn: conn, engine: engine}
}

func (fx *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.engine.ServeHTTP(rec, req)
	return rec
}

func (fx *fixture) login(t *testing.T) string {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/v0/admin/login", "", `{"username":"root","password":"admin-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode login: %v", errDecode)
	}
	return body.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, http.MethodPost, "/v0/admin/login", "", `{"username":"root","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, http.MethodGet, "/v0/admin/credits?user_id=1", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestGrantListAndRemoveCredits(t *testing.T) {
	fx := newFixture(t)
	token := fx.login(t)

	rec := fx.do(t, http.MethodPost, "/v0/admin/credits", token, `{"user_id":1,"amount":50,"credit_type":"paid"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var entry struct {
		ID uint64 `json:"id"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &entry); errDecode != nil {
		t.Fatalf("decode grant: %v", errDecode)
	}

	rec = fx.do(t, http.MethodGet, "/v0/admin/credits?user_id=1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listing struct {
		Balance float64 `json:"balance"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &listing); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if listing.Balance != 50 {
		t.Fatalf("expected balance 50, got %f", listing.Balance)
	}

	rec = fx.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/credits/%d", entry.ID), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rec.Code)
	}

	rec = fx.do(t, http.MethodGet, "/v0/admin/credits?user_id=1", token, "")
	_ = json.Unmarshal(rec.Body.Bytes(), &listing)
	if listing.Balance != 0 {
		t.Fatalf("removed entry still counts: %f", listing.Balance)
	}
}

func TestGrantRejectsUnknownCreditType(t *testing.T) {
	fx := newFixture(t)
	token := fx.login(t)
	rec := fx.do(t, http.MethodPost, "/v0/admin/credits", token, `{"user_id":1,"amount":50,"credit_type":"no-such"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSettingsRoundTripMasksProviderKeys(t *testing.T) {
	fx := newFixture(t)
	token := fx.login(t)

	rec := fx.do(t, http.MethodPut, "/v0/admin/settings", token,
		`{"key":"PROVIDER_OPENAI","value":{"active":true,"api_key":"sk-verysecretkey123"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = fx.do(t, http.MethodGet, "/v0/admin/settings", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sk-verysecretkey123") {
		t.Fatalf("settings listing leaked a provider api key")
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	fx := newFixture(t)
	token := fx.login(t)

	rec := fx.do(t, http.MethodPost, "/v0/admin/api-keys", token, `{"user_id":9,"name":"site","role":"administrator"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		ID  uint64 `json:"id"`
		Key string `json:"key"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode create: %v", errDecode)
	}
	if !strings.HasPrefix(created.Key, "pw_") {
		t.Fatalf("created key has wrong shape: %q", created.Key)
	}

	rec = fx.do(t, http.MethodGet, "/v0/admin/api-keys?user_id=9", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), created.Key) {
		t.Fatalf("listing leaked the full api key")
	}

	rec = fx.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/api-keys/%d", created.ID), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	fx := newFixture(t)
	token := fx.login(t)

	rec := fx.do(t, http.MethodPost, "/v0/admin/credits/sweep", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep: expected 200, got %d", rec.Code)
	}
	var body struct {
		Expired int `json:"expired"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if body.Expired != 0 {
		t.Fatalf("fresh db should sweep nothing, got %d", body.Expired)
	}
}
