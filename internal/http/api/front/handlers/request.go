package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/promptwell/promptwell/internal/orchestrator"
	"github.com/promptwell/promptwell/internal/provider"
)

// RequestHandler serves the generation endpoint.
type RequestHandler struct {
	orch *orchestrator.Orchestrator
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(orch *orchestrator.Orchestrator) *RequestHandler {
	return &RequestHandler{orch: orch}
}

type generateRequest struct {
	Provider string          `json:"provider" binding:"required"`
	Prompt   json.RawMessage `json:"prompt" binding:"required"`
	Options  map[string]any  `json:"options"`
}

// Generate runs one AI request through the orchestrator pipeline.
func (h *RequestHandler) Generate(c *gin.Context) {
	var req generateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	prompt, errPrompt := decodePrompt(req.Prompt)
	if errPrompt != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPrompt.Error()})
		return
	}

	resp, reqErr := h.orch.Process(c.Request.Context(), orchestrator.Request{
		UserID:   getUserID(c),
		Role:     getRole(c),
		Provider: req.Provider,
		Prompt:   prompt,
		Options:  req.Options,
		IP:       c.ClientIP(),
	})
	if reqErr != nil {
		writeRequestError(c, resp, reqErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decodePrompt accepts either a JSON string (plain prompt) or an object
// with system/user/image parts.
func decodePrompt(raw json.RawMessage) (provider.Prompt, error) {
	var text string
	if errText := json.Unmarshal(raw, &text); errText == nil {
		return provider.PlainPrompt(text), nil
	}
	var structured provider.Prompt
	if errObj := json.Unmarshal(raw, &structured); errObj != nil {
		return provider.Prompt{}, errors.New("prompt must be a string or an object")
	}
	return structured, nil
}

// writeRequestError maps orchestrator error kinds onto HTTP statuses. The
// insufficient-credits case still carries the generated content: the
// provider call already happened and its output is not discarded.
func writeRequestError(c *gin.Context, resp *orchestrator.Response, reqErr *orchestrator.RequestError) {
	body := gin.H{
		"error": reqErr.Detail,
		"code":  reqErr.Kind,
	}

	switch reqErr.Kind {
	case orchestrator.KindValidation, orchestrator.KindConfiguration:
		c.JSON(http.StatusBadRequest, body)
	case orchestrator.KindQuotaDenied:
		c.JSON(http.StatusTooManyRequests, body)
	case orchestrator.KindMaintenance:
		c.JSON(http.StatusServiceUnavailable, body)
	case orchestrator.KindProviderError:
		c.JSON(http.StatusBadGateway, body)
	case orchestrator.KindInsufficientCredits:
		if resp != nil {
			body["content"] = resp.Content
			body["usage"] = resp.Usage
			body["tracking_id"] = resp.TrackingID
		}
		c.JSON(http.StatusPaymentRequired, body)
	default:
		log.WithError(reqErr).Error("request processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": reqErr.Kind})
	}
}
