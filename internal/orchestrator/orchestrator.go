// Package orchestrator drives one AI request end to end: admission,
// provider dispatch, usage metering and credit settlement.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/promptwell/promptwell/internal/billing"
	"github.com/promptwell/promptwell/internal/events"
	"github.com/promptwell/promptwell/internal/ledger"
	"github.com/promptwell/promptwell/internal/models"
	"github.com/promptwell/promptwell/internal/provider"
	"github.com/promptwell/promptwell/internal/quota"
	"github.com/promptwell/promptwell/internal/settings"
	"github.com/promptwell/promptwell/internal/tracking"
)

// Request is one normalized generation request entering the pipeline.
type Request struct {
	UserID   uint64
	Role     string
	Provider string
	Prompt   provider.Prompt
	Options  map[string]any
	IP       string
}

// Response is the successful (or content-bearing) outcome of Process.
type Response struct {
	TrackingID uint64         `json:"tracking_id"`
	RequestID  string         `json:"request_id"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Content    string         `json:"content"`
	Usage      provider.Usage `json:"usage"`
	Consumed   float64        `json:"consumed"`
}

// Orchestrator wires the admission, dispatch and settlement stages.
type Orchestrator struct {
	registry *provider.Registry
	guard    *quota.Guard
	tracker  *tracking.Tracker
	ledger   *ledger.Ledger
	calc     *billing.Calculator
	events   events.Publisher
}

// New constructs an Orchestrator. The publisher may be nil.
func New(registry *provider.Registry, guard *quota.Guard, tracker *tracking.Tracker, creditLedger *ledger.Ledger, calc *billing.Calculator, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		registry: registry,
		guard:    guard,
		tracker:  tracker,
		ledger:   creditLedger,
		calc:     calc,
		events:   publisher,
	}
}

// Process runs one request through the full pipeline. Admission failures
// (validation, quota, maintenance, unknown provider) return before any
// tracking row exists. Once dispatch starts, a pending row is written and
// finalized exactly once on every path, including panic-free error paths.
//
// When the provider call succeeds but the debit fails for lack of
// credits, the generated content is still returned alongside a
// KindInsufficientCredits error: the provider cost is already paid, so
// discarding the output would waste it.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Response, *RequestError) {
	if errValidate := req.Prompt.Validate(); errValidate != nil {
		return nil, failValidation("prompt must not be empty", errValidate)
	}

	if errCheck := o.guard.Check(ctx, req.UserID, req.Role); errCheck != nil {
		var denied *quota.DeniedError
		if errors.As(errCheck, &denied) {
			kind := KindQuotaDenied
			if denied.Reason == quota.ReasonMaintenance {
				kind = KindMaintenance
			}
			return nil, &RequestError{Kind: kind, Detail: denied.Message, Err: denied}
		}
		return nil, failInternal(errCheck)
	}

	adapter, errResolve := o.registry.Resolve(req.Provider)
	if errResolve != nil {
		if errors.Is(errResolve, provider.ErrProviderNotConfigured) {
			return nil, &RequestError{Kind: KindConfiguration, Detail: "provider is not configured", Err: errResolve}
		}
		return nil, failValidation("unknown or inactive provider", errResolve)
	}
	if req.Prompt.IsStructured() && !adapter.SupportsStructured() {
		return nil, failValidation("provider does not accept structured prompts", provider.ErrStructuredUnsupported)
	}

	opts := provider.ParseOptions(req.Options)
	cfg, _ := settings.ProviderConfigFor(adapter.ID())

	requestID := uuid.NewString()
	meta := map[string]any{"request_id": requestID}
	if opts.Model != "" {
		meta["model"] = opts.Model
	}

	responseType := models.ResponseTypeText
	if req.Prompt.IsStructured() {
		responseType = models.ResponseTypeJSON
	}
	trackingID, errBegin := o.tracker.Begin(ctx, req.UserID, adapter.ID(), req.Prompt.Encode(), responseType, req.IP, meta)
	if errBegin != nil {
		return nil, failInternal(errBegin)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	started := time.Now()
	result, errGenerate := adapter.Generate(callCtx, req.Prompt, opts)
	meta["latency_ms"] = time.Since(started).Milliseconds()

	if errGenerate != nil {
		return nil, o.failDispatch(ctx, trackingID, req, adapter.ID(), meta, errGenerate)
	}

	meta["model"] = result.Model
	meta["prompt_tokens"] = result.Usage.PromptTokens
	meta["completion_tokens"] = result.Usage.CompletionTokens
	meta["total_tokens"] = result.Usage.TotalTokens
	if result.Usage.Estimated {
		meta["usage_estimated"] = true
	}

	cost, errCost := o.calc.Cost(ctx, adapter.ID(), result.Model, result.Usage)
	if errCost != nil {
		return nil, o.failDispatch(ctx, trackingID, req, adapter.ID(), meta, errCost)
	}

	resp := &Response{
		TrackingID: trackingID,
		RequestID:  requestID,
		Provider:   adapter.ID(),
		Model:      result.Model,
		Content:    result.Content,
		Usage:      result.Usage,
	}

	if cost > 0 {
		if errConsume := o.ledger.Consume(ctx, req.UserID, cost, "request "+requestID); errConsume != nil {
			if errors.Is(errConsume, ledger.ErrInsufficientCredits) {
				meta["debit_failed"] = "insufficient_credits"
				o.finalize(ctx, trackingID, tracking.FinalizeParams{
					Status:   models.TrackingStatusFailed,
					Response: &result.Content,
					Meta:     meta,
				})
				o.publishFailed(req.UserID, adapter.ID(), trackingID, "insufficient_credits")
				return resp, &RequestError{
					Kind:   KindInsufficientCredits,
					Detail: "not enough credits to cover this request",
					Err:    errConsume,
				}
			}
			return resp, o.failDispatch(ctx, trackingID, req, adapter.ID(), meta, errConsume)
		}
		resp.Consumed = cost
	}

	o.finalize(ctx, trackingID, tracking.FinalizeParams{
		Status:   models.TrackingStatusCompleted,
		Response: &result.Content,
		Consumed: cost,
		Meta:     meta,
	})
	o.events.Publish(events.RequestCompleted, map[string]any{
		"tracking_id": trackingID,
		"request_id":  requestID,
		"user_id":     req.UserID,
		"provider":    adapter.ID(),
		"model":       result.Model,
		"consumed":    cost,
		"tokens":      result.Usage.TotalTokens,
	})
	return resp, nil
}

// failDispatch finalizes the tracking row as failed and maps the cause to
// a RequestError. Nothing is consumed on these paths.
func (o *Orchestrator) failDispatch(ctx context.Context, trackingID uint64, req Request, providerID string, meta map[string]any, cause error) *RequestError {
	reqErr := classifyDispatchError(providerID, cause)
	meta["error"] = cause.Error()
	meta["error_kind"] = reqErr.Kind

	o.finalize(ctx, trackingID, tracking.FinalizeParams{
		Status: models.TrackingStatusFailed,
		Meta:   meta,
	})
	o.publishFailed(req.UserID, providerID, trackingID, reqErr.Kind)
	return reqErr
}

func classifyDispatchError(providerID string, cause error) *RequestError {
	if errors.Is(cause, provider.ErrBadImageRef) {
		return failValidation("image reference is not a URL, file path or base64 payload", cause)
	}
	var provErr *provider.Error
	if errors.As(cause, &provErr) {
		detail := "provider request failed"
		if provErr.IsTimeout() {
			detail = "provider request timed out"
		}
		return &RequestError{Kind: KindProviderError, Detail: detail, Err: cause}
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return &RequestError{Kind: KindProviderError, Detail: "provider request timed out", Err: cause}
	}
	return failInternal(cause)
}

// finalize applies the terminal tracking update; a failure here is logged
// but never surfaced, the caller's outcome is already decided.
func (o *Orchestrator) finalize(ctx context.Context, trackingID uint64, params tracking.FinalizeParams) {
	if errFinalize := o.tracker.Finalize(ctx, trackingID, params); errFinalize != nil {
		log.WithError(errFinalize).Warnf("orchestrator: finalize tracking %d failed", trackingID)
	}
}

func (o *Orchestrator) publishFailed(userID uint64, providerID string, trackingID uint64, reason string) {
	o.events.Publish(events.RequestFailed, map[string]any{
		"tracking_id": trackingID,
		"user_id":     userID,
		"provider":    providerID,
		"reason":      reason,
	})
}
