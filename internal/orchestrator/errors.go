package orchestrator

import "fmt"

// Error kinds carried to the transport layer. Each kind has a stable
// string value so handlers can map failures to status codes without
// inspecting wrapped errors.
const (
	KindValidation          = "validation"
	KindQuotaDenied         = "quota_denied"
	KindMaintenance         = "maintenance"
	KindConfiguration       = "configuration"
	KindProviderError       = "provider_error"
	KindInsufficientCredits = "insufficient_credits"
	KindInternal            = "internal"
)

// RequestError is the single error type Process returns. Detail holds a
// user-presentable message; Err keeps the cause for logging.
type RequestError struct {
	Kind   string
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failValidation(detail string, err error) *RequestError {
	return &RequestError{Kind: KindValidation, Detail: detail, Err: err}
}

func failInternal(err error) *RequestError {
	return &RequestError{Kind: KindInternal, Detail: "internal error", Err: err}
}
