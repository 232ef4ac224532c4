package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptwell/promptwell/internal/ledger"
)

// BalanceHandler exposes the caller's credit balance and entries.
type BalanceHandler struct {
	ledger *ledger.Ledger
}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler(creditLedger *ledger.Ledger) *BalanceHandler {
	return &BalanceHandler{ledger: creditLedger}
}

// Get returns the caller's spendable balance and credit entries.
func (h *BalanceHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	balance, errBalance := h.ledger.AvailableBalance(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	entries, errEntries := h.ledger.Entries(c.Request.Context(), userID)
	if errEntries != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance": balance,
		"entries": entries,
	})
}
