package provider

import (
	"encoding/json"
	"errors"
	"strings"
)

// Prompt is either a plain text prompt or a structured prompt with
// optional system, user and image parts. Only the OpenAI adapter accepts
// the structured form; callers must check Adapter.SupportsStructured
// before sending one elsewhere.
type Prompt struct {
	Text   string `json:"text,omitempty"`
	System string `json:"system,omitempty"`
	User   string `json:"user,omitempty"`
	Image  string `json:"image,omitempty"`
}

// PlainPrompt builds a plain-text prompt.
func PlainPrompt(text string) Prompt {
	return Prompt{Text: text}
}

// IsStructured reports whether the prompt uses the structured form.
func (p Prompt) IsStructured() bool {
	return p.System != "" || p.Image != "" || (p.User != "" && p.Text == "")
}

// UserText returns the user-facing text of the prompt in either form.
func (p Prompt) UserText() string {
	if p.Text != "" {
		return p.Text
	}
	return p.User
}

// Validate rejects empty prompts.
func (p Prompt) Validate() error {
	if strings.TrimSpace(p.Text) == "" && strings.TrimSpace(p.User) == "" && strings.TrimSpace(p.Image) == "" {
		return errors.New("empty prompt")
	}
	return nil
}

// Encode renders the prompt for tracking storage: plain prompts as-is,
// structured prompts as JSON.
func (p Prompt) Encode() string {
	if !p.IsStructured() {
		return p.Text
	}
	encoded, errMarshal := json.Marshal(p)
	if errMarshal != nil {
		return p.UserText()
	}
	return string(encoded)
}
