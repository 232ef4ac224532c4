package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/promptwell/promptwell/internal/settings"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// geminiAdapter talks to the Gemini generateContent API. Gemini nests the
// prompt under contents[].parts[].text and generation parameters under
// generationConfig, and authenticates with the key as a query parameter.
type geminiAdapter struct {
	cfg    settings.ProviderConfig
	client *http.Client
}

func newGemini(cfg settings.ProviderConfig) Adapter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultGeminiEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &geminiAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout())}
}

func (a *geminiAdapter) ID() string { return Gemini }

func (a *geminiAdapter) SupportsStructured() bool { return false }

func (a *geminiAdapter) Models() map[string]ModelInfo {
	return map[string]ModelInfo{
		"gemini-1.5-pro":   {ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro"},
		"gemini-1.5-flash": {ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash"},
		"gemini-1.0-pro":   {ID: "gemini-1.0-pro", Name: "Gemini 1.0 Pro"},
	}
}

func (a *geminiAdapter) Generate(ctx context.Context, prompt Prompt, opts Options) (*Result, error) {
	if prompt.IsStructured() {
		return nil, ErrStructuredUnsupported
	}

	model := opts.Model
	if model == "" {
		model = a.cfg.Model
	}

	generationConfig := map[string]any{}
	if maxTokens := firstPositive(opts.MaxTokens, a.cfg.MaxTokens); maxTokens > 0 {
		generationConfig["maxOutputTokens"] = maxTokens
	}
	if temp := firstFloat(opts.Temperature, a.cfg.Temperature); temp != nil {
		generationConfig["temperature"] = *temp
	}
	if topP := firstFloat(opts.TopP, a.cfg.TopP); topP != nil {
		generationConfig["topP"] = *topP
	}
	if stop := firstStop(opts.StopSequences, a.cfg.StopSequences); len(stop) > 0 {
		generationConfig["stopSequences"] = stop
	}

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt.UserText()}}},
		},
	}
	if len(generationConfig) > 0 {
		body["generationConfig"] = generationConfig
	}

	endpoint := strings.TrimSuffix(a.cfg.Endpoint, "/") + "/models/" + model + ":generateContent?key=" + url.QueryEscape(a.cfg.APIKey)
	raw, errPost := postJSON(ctx, a.client, Gemini, endpoint, nil, body)
	if errPost != nil {
		return nil, errPost
	}

	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
		ModelVersion string `json:"modelVersion"`
	}
	if errDecode := json.Unmarshal(raw, &envelope); errDecode != nil {
		return nil, &Error{Provider: Gemini, Message: "undecodable response body", Err: errDecode}
	}
	if len(envelope.Candidates) == 0 {
		return nil, &Error{Provider: Gemini, Message: "response contains no candidates"}
	}

	var content strings.Builder
	for _, part := range envelope.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}
	if content.Len() == 0 {
		return nil, &Error{Provider: Gemini, Message: "response contains no text parts"}
	}

	result := &Result{
		Content: content.String(),
		Model:   envelope.ModelVersion,
		Usage: Usage{
			PromptTokens:     envelope.UsageMetadata.PromptTokenCount,
			CompletionTokens: envelope.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      envelope.UsageMetadata.TotalTokenCount,
		},
	}
	if result.Model == "" {
		result.Model = model
	}
	// Some response paths omit usageMetadata entirely.
	if result.Usage.TotalTokens == 0 {
		result.Usage.TotalTokens = estimateTokens(prompt.UserText()) + estimateTokens(result.Content)
		result.Usage.Estimated = true
	}
	return result, nil
}
