package provider

// estimateTokens approximates a token count as chars/4, for providers
// whose response envelope omits usage data. Callers must not treat the
// result as exact.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count
}
