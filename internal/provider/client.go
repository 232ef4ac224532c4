package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 4 << 20

// newHTTPClient builds an HTTP client with the configured call timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// postJSON issues one JSON POST to a provider endpoint and returns the raw
// response body. Any transport failure, non-2xx status or oversized body is
// normalized into *Error.
func postJSON(ctx context.Context, client *http.Client, providerID, url string, headers map[string]string, body any) ([]byte, error) {
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return nil, &Error{Provider: providerID, Message: fmt.Sprintf("encode request: %v", errMarshal)}
	}

	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errRequest != nil {
		return nil, &Error{Provider: providerID, Err: errRequest}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, errDo := client.Do(req)
	if errDo != nil {
		return nil, &Error{Provider: providerID, Err: unwrapURLError(errDo)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if errRead != nil {
		return nil, &Error{Provider: providerID, StatusCode: resp.StatusCode, Err: errRead}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Provider:   providerID,
			StatusCode: resp.StatusCode,
			Message:    providerErrorMessage(raw, resp.StatusCode),
		}
	}
	return raw, nil
}

// unwrapURLError strips the url.Error wrapper so context.DeadlineExceeded
// stays reachable through errors.Is.
func unwrapURLError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}

// providerErrorMessage extracts a human-readable message from a provider
// error envelope, falling back to a body excerpt or the status text.
func providerErrorMessage(raw []byte, statusCode int) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return http.StatusText(statusCode)
	}
	if json.Valid([]byte(trimmed)) {
		var payload map[string]any
		if errUnmarshal := json.Unmarshal([]byte(trimmed), &payload); errUnmarshal == nil {
			if errValue, ok := payload["error"]; ok {
				switch typed := errValue.(type) {
				case map[string]any:
					if msg, ok := typed["message"].(string); ok && msg != "" {
						return strings.TrimSpace(msg)
					}
				case string:
					if typed != "" {
						return strings.TrimSpace(typed)
					}
				}
			}
			if msg, ok := payload["message"].(string); ok && msg != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	const maxExcerpt = 256
	if len(trimmed) > maxExcerpt {
		trimmed = trimmed[:maxExcerpt]
	}
	return trimmed
}
