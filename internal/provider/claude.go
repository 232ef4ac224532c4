package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/promptwell/promptwell/internal/settings"
)

const (
	defaultClaudeEndpoint   = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	defaultClaudeMaxTokens  = 1024
	legacyCompleteSuffix    = "/v1/complete"
)

// claudeAdapter talks to the Anthropic messages API, with a fallback to the
// legacy text-completions endpoint when the configured endpoint targets it.
type claudeAdapter struct {
	cfg    settings.ProviderConfig
	client *http.Client
}

func newClaude(cfg settings.ProviderConfig) Adapter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultClaudeEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	return &claudeAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout())}
}

func (a *claudeAdapter) ID() string { return Claude }

func (a *claudeAdapter) SupportsStructured() bool { return false }

func (a *claudeAdapter) Models() map[string]ModelInfo {
	return map[string]ModelInfo{
		"claude-3-5-sonnet-20241022": {ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet"},
		"claude-3-5-haiku-20241022":  {ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku"},
		"claude-3-opus-20240229":     {ID: "claude-3-opus-20240229", Name: "Claude 3 Opus"},
	}
}

func (a *claudeAdapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

func (a *claudeAdapter) Generate(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	if prompt.IsStructured() {
		return nil, ErrStructuredUnsupported
	}
	if strings.HasSuffix(strings.TrimSuffix(a.cfg.Endpoint, "/"), legacyCompleteSuffix) {
		return a.generateLegacy(ctx, prompt, opts)
	}
	return a.generateMessages(ctx, prompt, opts)
}

func (a *claudeAdapter) generateMessages(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}
	maxTokens := firstPositive(opts.MaxTokens, a.cfg.MaxTokens, defaultClaudeMaxTokens)

	body := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": prompt.UserText()},
		},
	}
	if temp := firstFloat(opts.Temperature, a.cfg.Temperature); temp != nil {
		body["temperature"] = *temp
	}
	if topP := firstFloat(opts.TopP, a.cfg.TopP); topP != nil {
		body["top_p"] = *topP
	}
	if stop := firstStop(opts.StopSequences, a.cfg.StopSequences); len(stop) > 0 {
		body["stop_sequences"] = stop
	}

	raw, errPost := postJSON(ctx, a.client, Claude, strings.TrimSuffix(a.cfg.Endpoint, "/")+"/v1/messages", a.headers(), body)
	if errPost != nil {
		return nil, errPost
	}

	var envelope struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if errDecode := json.Unmarshal(raw, &envelope); errDecode != nil {
		return nil, &Error{Provider: Claude, Message: "undecodable response body", Err: errDecode}
	}

	var content strings.Builder
	for _, block := range envelope.Content {
		if block.Type == "" || block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, &Error{Provider: Claude, Message: "response contains no text content"}
	}

	result := &Result{
		Content: content.String(),
		Model:   envelope.Model,
		Usage: Usage{
			PromptTokens:     envelope.Usage.InputTokens,
			CompletionTokens: envelope.Usage.OutputTokens,
			TotalTokens:      envelope.Usage.InputTokens + envelope.Usage.OutputTokens,
		},
	}
	if result.Model == "" {
		result.Model = model
	}
	if result.Usage.TotalTokens == 0 {
		result.Usage.TotalTokens = estimateTokens(prompt.UserText()) + estimateTokens(result.Content)
		result.Usage.Estimated = true
	}
	return result, nil
}

// generateLegacy targets the pre-messages text-completions API, which takes
// a single Human/Assistant prompt string.
func (a *claudeAdapter) generateLegacy(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}
	body := map[string]any{
		"model":                model,
		"prompt":               "\n\nHuman: " + prompt.UserText() + "\n\nAssistant:",
		"max_tokens_to_sample": firstPositive(opts.MaxTokens, a.cfg.MaxTokens, defaultClaudeMaxTokens),
	}
	if temp := firstFloat(opts.Temperature, a.cfg.Temperature); temp != nil {
		body["temperature"] = *temp
	}

	raw, errPost := postJSON(ctx, a.client, Claude, strings.TrimSuffix(a.cfg.Endpoint, "/"), a.headers(), body)
	if errPost != nil {
		return nil, errPost
	}

	var envelope struct {
		Completion string `json:"completion"`
		Model      string `json:"model"`
	}
	if errDecode := json.Unmarshal(raw, &envelope); errDecode != nil {
		return nil, &Error{Provider: Claude, Message: "undecodable response body", Err: errDecode}
	}
	if strings.TrimSpace(envelope.Completion) == "" {
		return nil, &Error{Provider: Claude, Message: "response contains no completion"}
	}

	result := &Result{
		Content: strings.TrimSpace(envelope.Completion),
		Model:   envelope.Model,
	}
	if result.Model == "" {
		result.Model = model
	}
	// The legacy envelope has no usage block at all.
	result.Usage.TotalTokens = estimateTokens(prompt.UserText()) + estimateTokens(result.Content)
	result.Usage.Estimated = true
	return result, nil
}
