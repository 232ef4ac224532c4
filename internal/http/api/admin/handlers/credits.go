package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/ledger"
)

// CreditsHandler manages user credit entries.
type CreditsHandler struct {
	ledger *ledger.Ledger
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(creditLedger *ledger.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: creditLedger}
}

type grantRequest struct {
	UserID     uint64     `json:"user_id" binding:"required"`
	Amount     float64    `json:"amount" binding:"required"`
	CreditType string     `json:"credit_type" binding:"required"`
	TypeID     string     `json:"type_id"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// Grant creates a credit entry for a user.
func (h *CreditsHandler) Grant(c *gin.Context) {
	var req grantRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	entry, errGrant := h.ledger.Grant(c.Request.Context(), req.UserID, req.Amount, req.CreditType, req.TypeID, req.ExpiresAt)
	if errGrant != nil {
		switch {
		case errors.Is(errGrant, ledger.ErrInvalidAmount), errors.Is(errGrant, ledger.ErrUnknownCreditType):
			c.JSON(http.StatusBadRequest, gin.H{"error": errGrant.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// List returns a user's credit entries and current balance.
func (h *CreditsHandler) List(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	entries, errEntries := h.ledger.Entries(c.Request.Context(), userID)
	if errEntries != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	balance, errBalance := h.ledger.AvailableBalance(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "entries": entries})
}

// Remove marks a credit entry deleted, keeping it for the audit trail.
func (h *CreditsHandler) Remove(c *gin.Context) {
	entryID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}
	if errRemove := h.ledger.Remove(c.Request.Context(), entryID); errRemove != nil {
		if errors.Is(errRemove, ledger.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// Sweep runs the expiry sweep immediately and reports the count.
func (h *CreditsHandler) Sweep(c *gin.Context) {
	count, errSweep := h.ledger.SweepExpired(c.Request.Context())
	if errSweep != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}
