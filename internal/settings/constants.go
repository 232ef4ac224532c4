package settings

// DB config keys and defaults for settings.
const (
	// ProviderOpenAIKey holds the OpenAI provider configuration.
	ProviderOpenAIKey = "PROVIDER_OPENAI"
	// ProviderClaudeKey holds the Claude provider configuration.
	ProviderClaudeKey = "PROVIDER_CLAUDE"
	// ProviderGeminiKey holds the Gemini provider configuration.
	ProviderGeminiKey = "PROVIDER_GEMINI"
	// ProviderPerplexityKey holds the Perplexity provider configuration.
	ProviderPerplexityKey = "PROVIDER_PERPLEXITY"

	// RequestsPerDayKey caps completed requests per user per day, 0 means unlimited.
	RequestsPerDayKey = "REQUESTS_PER_DAY"
	// MaintenanceKey holds the maintenance window configuration.
	MaintenanceKey = "MAINTENANCE"
	// CreditTypesKey lists the accepted credit grant types.
	CreditTypesKey = "CREDIT_TYPES"
	// CreditUnitsPerTokenKey converts normalized token usage into ledger units.
	CreditUnitsPerTokenKey = "CREDIT_UNITS_PER_TOKEN"

	// DefaultRequestsPerDay is the fallback daily request cap.
	DefaultRequestsPerDay = 0
	// DefaultCreditUnitsPerToken is the fallback token-to-unit conversion.
	DefaultCreditUnitsPerToken = 1.0
	// DefaultProviderTimeoutSeconds bounds outbound provider calls.
	DefaultProviderTimeoutSeconds = 60
)

// ProviderSettingKeys maps provider IDs to their settings keys.
var ProviderSettingKeys = map[string]string{
	"openai":     ProviderOpenAIKey,
	"claude":     ProviderClaudeKey,
	"gemini":     ProviderGeminiKey,
	"perplexity": ProviderPerplexityKey,
}
