package settings

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/promptwell/promptwell/internal/models"
)

// ProviderConfig is the per-provider configuration stored under the
// PROVIDER_* keys.
type ProviderConfig struct {
	Active           bool     `json:"active"`
	DisplayName      string   `json:"display_name"`
	Endpoint         string   `json:"endpoint"`
	APIKey           string   `json:"api_key"`
	Model            string   `json:"model"`
	MaxTokens        int      `json:"max_tokens"`
	Temperature      *float64 `json:"temperature"`
	TopP             *float64 `json:"top_p"`
	PresencePenalty  *float64 `json:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty"`
	StopSequences    []string `json:"stop_sequences"`
	TimeoutSeconds   int      `json:"timeout_seconds"`
}

// Timeout returns the bounded provider call timeout.
func (c ProviderConfig) Timeout() time.Duration {
	seconds := c.TimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultProviderTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Maintenance is the maintenance window configuration stored under the
// MAINTENANCE key.
type Maintenance struct {
	Active        bool       `json:"active"`
	Message       string     `json:"message"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	ExcludedRoles []string   `json:"excluded_roles"`
}

// ProviderConfigFor returns the configuration for a provider ID. The second
// return value reports whether any configuration was stored for it.
func ProviderConfigFor(providerID string) (ProviderConfig, bool) {
	key, ok := ProviderSettingKeys[strings.ToLower(strings.TrimSpace(providerID))]
	if !ok {
		return ProviderConfig{}, false
	}
	raw, ok := Value(key)
	if !ok || len(raw) == 0 {
		return ProviderConfig{}, false
	}
	var cfg ProviderConfig
	if errUnmarshal := json.Unmarshal(raw, &cfg); errUnmarshal != nil {
		return ProviderConfig{}, false
	}
	return cfg, true
}

// RequestsPerDay returns the configured daily request cap, 0 for unlimited.
func RequestsPerDay() int {
	raw, ok := Value(RequestsPerDayKey)
	if !ok || len(raw) == 0 {
		return DefaultRequestsPerDay
	}
	var limit int
	if errUnmarshal := json.Unmarshal(raw, &limit); errUnmarshal != nil || limit < 0 {
		return DefaultRequestsPerDay
	}
	return limit
}

// MaintenanceConfig returns the current maintenance window configuration.
func MaintenanceConfig() Maintenance {
	raw, ok := Value(MaintenanceKey)
	if !ok || len(raw) == 0 {
		return Maintenance{}
	}
	var m Maintenance
	if errUnmarshal := json.Unmarshal(raw, &m); errUnmarshal != nil {
		return Maintenance{}
	}
	return m
}

// CreditTypes returns the accepted credit grant types.
func CreditTypes() []string {
	raw, ok := Value(CreditTypesKey)
	if !ok || len(raw) == 0 {
		return models.DefaultCreditTypes
	}
	var types []string
	if errUnmarshal := json.Unmarshal(raw, &types); errUnmarshal != nil || len(types) == 0 {
		return models.DefaultCreditTypes
	}
	return types
}

// CreditUnitsPerToken returns the token-to-ledger-unit conversion ratio.
func CreditUnitsPerToken() float64 {
	raw, ok := Value(CreditUnitsPerTokenKey)
	if !ok || len(raw) == 0 {
		return DefaultCreditUnitsPerToken
	}
	var ratio float64
	if errUnmarshal := json.Unmarshal(raw, &ratio); errUnmarshal != nil || ratio <= 0 {
		return DefaultCreditUnitsPerToken
	}
	return ratio
}
