package provider

import (
	"context"
	"errors"
	"testing"
)

func TestParseOptionsRecognizedKeys(t *testing.T) {
	opts := ParseOptions(map[string]any{
		"model":          "gpt-4o-mini",
		"max_tokens":     float64(256),
		"temperature":    0.4,
		"top_p":          0.9,
		"stop_sequences": []any{"END", ""},
		"voice":          "alloy",
		"frobnicate":     true,
	})

	if opts.Model != "gpt-4o-mini" {
		t.Fatalf("model not parsed: %q", opts.Model)
	}
	if opts.MaxTokens != 256 {
		t.Fatalf("max_tokens not parsed: %d", opts.MaxTokens)
	}
	if opts.Temperature == nil || *opts.Temperature != 0.4 {
		t.Fatalf("temperature not parsed")
	}
	if opts.TopP == nil || *opts.TopP != 0.9 {
		t.Fatalf("top_p not parsed")
	}
	if len(opts.StopSequences) != 1 || opts.StopSequences[0] != "END" {
		t.Fatalf("stop_sequences not parsed: %v", opts.StopSequences)
	}
}

func TestParseOptionsNilAndEmpty(t *testing.T) {
	if opts := ParseOptions(nil); opts.Model != "" || opts.MaxTokens != 0 {
		t.Fatalf("nil map should yield zero options")
	}
	if opts := ParseOptions(map[string]any{"max_tokens": -10}); opts.MaxTokens != 0 {
		t.Fatalf("negative max_tokens should be dropped")
	}
}

func TestPromptForms(t *testing.T) {
	plain := PlainPrompt("hello")
	if plain.IsStructured() {
		t.Fatalf("plain prompt reported structured")
	}
	if plain.Encode() != "hello" {
		t.Fatalf("plain prompt encoding changed: %q", plain.Encode())
	}

	structured := Prompt{System: "be brief", User: "hi"}
	if !structured.IsStructured() {
		t.Fatalf("structured prompt not detected")
	}
	if structured.UserText() != "hi" {
		t.Fatalf("user text extraction failed")
	}
	if encoded := structured.Encode(); encoded == "hi" {
		t.Fatalf("structured prompt should encode as JSON, got %q", encoded)
	}

	if errValidate := (Prompt{}).Validate(); errValidate == nil {
		t.Fatalf("empty prompt should fail validation")
	}
	if errValidate := (Prompt{Text: "  "}).Validate(); errValidate == nil {
		t.Fatalf("whitespace prompt should fail validation")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Fatalf("empty string should estimate 0, got %d", got)
	}
	if got := estimateTokens("ab"); got != 1 {
		t.Fatalf("short string should estimate at least 1, got %d", got)
	}
	if got := estimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("expected chars/4, got %d", got)
	}
}

func TestErrorTimeoutDetection(t *testing.T) {
	timeoutErr := &Error{Provider: OpenAI, Err: context.DeadlineExceeded}
	if !timeoutErr.IsTimeout() {
		t.Fatalf("deadline error not detected as timeout")
	}
	if !errors.Is(timeoutErr, context.DeadlineExceeded) {
		t.Fatalf("unwrap chain broken")
	}

	plainErr := &Error{Provider: OpenAI, StatusCode: 500}
	if plainErr.IsTimeout() {
		t.Fatalf("status error misreported as timeout")
	}
}
