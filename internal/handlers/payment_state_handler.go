package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/paypal-checkout/internal/interfaces"
)

type PaymentStateHandler struct {
	repo interfaces.PaymentStateRepository
}

// NewPaymentStateHandler accepts a nil repo when state tracking is disabled.
func NewPaymentStateHandler(repo interfaces.PaymentStateRepository) *PaymentStateHandler {
	return &PaymentStateHandler{repo: repo}
}

func (h *PaymentStateHandler) GetPaymentState(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment state tracking is disabled"})
		return
	}

	paymentID := c.Param("id")

	info, err := h.repo.GetByPaymentID(c.Request.Context(), paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment state not found"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":     paymentID,
		"state":          info.State,
		"previous_state": info.PreviousState,
		"amount":         info.Amount,
		"currency":       info.Currency,
		"payer_id":       info.PayerID,
		"created_at":     info.CreatedAt,
		"updated_at":     info.UpdatedAt,
	})
}
