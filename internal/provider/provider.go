// Package provider implements the adapters that translate normalized
// generation requests into provider-specific wire calls and back.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Known provider IDs. The set is closed: adding a provider means adding an
// adapter implementation and registering it in NewRegistry.
const (
	OpenAI     = "openai"
	Claude     = "claude"
	Gemini     = "gemini"
	Perplexity = "perplexity"
)

// Registry resolution errors.
var (
	// ErrProviderNotFound indicates an unknown or inactive provider ID.
	ErrProviderNotFound = errors.New("provider not found or inactive")
	// ErrProviderNotConfigured indicates an active provider missing credentials.
	ErrProviderNotConfigured = errors.New("provider missing api key")
	// ErrStructuredUnsupported indicates a structured prompt sent to a text-only provider.
	ErrStructuredUnsupported = errors.New("provider does not support structured prompts")
	// ErrBadImageRef indicates an image reference in none of the accepted forms.
	ErrBadImageRef = errors.New("unrecognized image reference")
)

// Options carries per-request overrides. Zero values fall back to the
// provider's configured defaults; unrecognized option keys are dropped
// before this struct is built.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	StopSequences []string
}

// ParseOptions extracts recognized option keys from a raw options map.
// Unrecognized keys are ignored by contract.
func ParseOptions(raw map[string]any) Options {
	var opts Options
	if raw == nil {
		return opts
	}
	if v, ok := raw["model"].(string); ok {
		opts.Model = v
	}
	if v, ok := toFloat(raw["max_tokens"]); ok && v > 0 {
		opts.MaxTokens = int(v)
	}
	if v, ok := toFloat(raw["temperature"]); ok {
		value := v
		opts.Temperature = &value
	}
	if v, ok := toFloat(raw["top_p"]); ok {
		value := v
		opts.TopP = &value
	}
	if seq, ok := raw["stop_sequences"].([]any); ok {
		for _, item := range seq {
			if s, ok := item.(string); ok && s != "" {
				opts.StopSequences = append(opts.StopSequences, s)
			}
		}
	}
	return opts
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
}

// Usage reports token consumption for one call. Estimated marks figures
// derived from the chars/4 heuristic rather than the provider's envelope.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated"`
}

// Result is the normalized outcome of a provider call.
type Result struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Multimodal bool   `json:"multimodal,omitempty"`
}

// Adapter is the contract each provider backend implements.
type Adapter interface {
	// ID returns the stable provider identifier.
	ID() string
	// Generate issues one synchronous generation call with a bounded timeout.
	Generate(ctx context.Context, prompt Prompt, opts Options) (*Result, error)
	// Models lists the models this adapter can serve.
	Models() map[string]ModelInfo
	// SupportsStructured reports whether structured/multimodal prompts are accepted.
	SupportsStructured() bool
}

// Error carries a provider-side failure across the adapter boundary.
// Provider-specific error shapes never leak past it.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s: status=%d", e.Provider, e.StatusCode)
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTimeout reports whether the failure was a deadline expiry.
func (e *Error) IsTimeout() bool {
	return e != nil && errors.Is(e.Err, context.DeadlineExceeded)
}
