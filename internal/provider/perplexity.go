package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/promptwell/promptwell/internal/settings"
)

const defaultPerplexityEndpoint = "https://api.perplexity.ai"

// perplexityAdapter talks to the Perplexity chat completions API, which
// follows the OpenAI messages envelope.
type perplexityAdapter struct {
	cfg    settings.ProviderConfig
	client *http.Client
}

func newPerplexity(cfg settings.ProviderConfig) Adapter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultPerplexityEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "sonar"
	}
	return &perplexityAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout())}
}

func (a *perplexityAdapter) ID() string { return Perplexity }

func (a *perplexityAdapter) SupportsStructured() bool { return false }

func (a *perplexityAdapter) Models() map[string]ModelInfo {
	return map[string]ModelInfo{
		"sonar":           {ID: "sonar", Name: "Sonar"},
		"sonar-pro":       {ID: "sonar-pro", Name: "Sonar Pro"},
		"sonar-reasoning": {ID: "sonar-reasoning", Name: "Sonar Reasoning"},
	}
}

func (a *perplexityAdapter) Generate(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	if prompt.IsStructured() {
		return nil, ErrStructuredUnsupported
	}

	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}
	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt.UserText()},
		},
	}
	if maxTokens := firstPositive(opts.MaxTokens, a.cfg.MaxTokens); maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	if temp := firstFloat(opts.Temperature, a.cfg.Temperature); temp != nil {
		body["temperature"] = *temp
	}
	if topP := firstFloat(opts.TopP, a.cfg.TopP); topP != nil {
		body["top_p"] = *topP
	}

	raw, errPost := postJSON(ctx, a.client, Perplexity, strings.TrimSuffix(a.cfg.Endpoint, "/")+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + a.cfg.APIKey,
	}, body)
	if errPost != nil {
		return nil, errPost
	}

	var envelope struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if errDecode := json.Unmarshal(raw, &envelope); errDecode != nil {
		return nil, &Error{Provider: Perplexity, Message: "undecodable response body", Err: errDecode}
	}
	if len(envelope.Choices) == 0 {
		return nil, &Error{Provider: Perplexity, Message: "response contains no choices"}
	}

	result := &Result{
		Content: envelope.Choices[0].Message.Content,
		Model:   envelope.Model,
		Usage: Usage{
			PromptTokens:     envelope.Usage.PromptTokens,
			CompletionTokens: envelope.Usage.CompletionTokens,
			TotalTokens:      envelope.Usage.TotalTokens,
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
