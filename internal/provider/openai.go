package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/promptwell/promptwell/internal/settings"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// openAIAdapter talks to the OpenAI chat completions API. It is the only
// adapter accepting structured/multimodal prompts.
type openAIAdapter struct {
	cfg    settings.ProviderConfig
	client *http.Client
}

func newOpenAI(cfg settings.ProviderConfig) Adapter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultOpenAIEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o"
	}
	return &openAIAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout())}
}

func (a *openAIAdapter) ID() string { return OpenAI }

func (a *openAIAdapter) SupportsStructured() bool { return true }

func (a *openAIAdapter) Models() map[string]ModelInfo {
	return map[string]ModelInfo{
		"gpt-4o":        {ID: "gpt-4o", Name: "GPT-4o", Multimodal: true},
		"gpt-4o-mini":   {ID: "gpt-4o-mini", Name: "GPT-4o mini", Multimodal: true},
		"gpt-4-turbo":   {ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Multimodal: true},
		"gpt-3.5-turbo": {ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo"},
	}
}

func (a *openAIAdapter) Generate(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	messages, errMessages := a.buildMessages(prompt)
	if errMessages != nil {
		return nil, errMessages
	}

	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
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
	if a.cfg.PresencePenalty != nil {
		body["presence_penalty"] = *a.cfg.PresencePenalty
	}
	if a.cfg.FrequencyPenalty != nil {
		body["frequency_penalty"] = *a.cfg.FrequencyPenalty
	}
	if stop := firstStop(opts.StopSequences, a.cfg.StopSequences); len(stop) > 0 {
		body["stop"] = stop
	}

	raw, errPost := postJSON(ctx, a.client, OpenAI, strings.TrimSuffix(a.cfg.Endpoint, "/")+"/chat/completions", map[string]string{
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
		return nil, &Error{Provider: OpenAI, Message: "undecodable response body", Err: errDecode}
	}
	if len(envelope.Choices) == 0 {
		return nil, &Error{Provider: OpenAI, Message: "response contains no choices"}
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

// buildMessages renders a plain or structured prompt into the messages array.
func (a *openAIAdapter) buildMessages(prompt Prompt) ([]map[string]any, error) {
	var messages []map[string]any
	if prompt.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": prompt.System})
	}

	if prompt.Image != "" {
		imageURL, errImage := PrepareImageURL(prompt.Image)
		if errImage != nil {
			return nil, errImage
		}
		parts := []map[string]any{}
		if text := prompt.UserText(); text != "" {
			parts = append(parts, map[string]any{"type": "text", "text": text})
		}
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": imageURL},
		})
		messages = append(messages, map[string]any{"role": "user", "content": parts})
		return messages, nil
	}

	messages = append(messages, map[string]any{"role": "user", "content": prompt.UserText()})
	return messages, nil
}

// firstPositive returns the first positive int.
func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// firstFloat returns the first non-nil float pointer.
func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstStop returns the first non-empty stop sequence list.
func firstStop(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
