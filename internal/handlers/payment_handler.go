package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
	"github.com/akylbek/payment-system/paypal-checkout/internal/service"
	"github.com/akylbek/payment-system/paypal-checkout/internal/session"
	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

const (
	msgProviderFailure = "Something went wrong, Sorry for inconvenience"
	msgUnknownError    = "Unknown error occurred"
	msgPaymentFailed   = "Payment Failed"
	msgPaymentSuccess  = "Payment Successful"

	rootPath = "/"
	homePath = "/home"
)

// CheckoutFlow is implemented by service.Checkout.
type CheckoutFlow interface {
	Initiate(ctx context.Context, sessionID string, cart models.Cart) (string, error)
	Finalize(ctx context.Context, sessionID string, params models.CallbackParams) (*service.Result, error)
}

type PaymentHandler struct {
	checkout    CheckoutFlow
	store       session.Store
	defaultCart models.Cart
}

func NewPaymentHandler(checkout CheckoutFlow, store session.Store, defaultCart models.Cart) *PaymentHandler {
	return &PaymentHandler{
		checkout:    checkout,
		store:       store,
		defaultCart: defaultCart,
	}
}

// StartPayment handles GET /payment: creates a payment for the configured cart
// and redirects the browser to PayPal.
func (h *PaymentHandler) StartPayment(c *gin.Context) {
	sid := session.ID(c)

	cart := h.defaultCart
	cart.Items = append([]models.CartItem(nil), h.defaultCart.Items...)

	approvalURL, err := h.checkout.Initiate(c.Request.Context(), sid, cart)
	if err != nil {
		h.redirectWithFlash(c, "error", initiateMessage(err), rootPath)
		return
	}

	c.Redirect(http.StatusFound, approvalURL)
}

// CreatePayment handles POST /payment with a JSON cart and returns the approval URL.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var cart models.Cart
	if err := c.ShouldBindJSON(&cart); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	approvalURL, err := h.checkout.Initiate(c.Request.Context(), session.ID(c), cart)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCart):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrApprovalLinkMissing):
			c.JSON(http.StatusBadGateway, gin.H{"error": msgUnknownError})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": msgProviderFailure})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"approval_url": approvalURL})
}

// PaymentStatus handles the PayPal return redirect, GET /payment/status?PayerID=..&token=..
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	var params models.CallbackParams
	if err := c.ShouldBindQuery(&params); err != nil {
		params = models.CallbackParams{}
	}

	result, err := h.checkout.Finalize(c.Request.Context(), session.ID(c), params)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if result != nil {
			fields = append(fields, zap.String("payment_id", result.PaymentID))
		}
		telemetry.Logger.Info("Checkout not completed", fields...)
		h.redirectWithFlash(c, "error", msgPaymentFailed, rootPath)
		return
	}

	h.redirectWithFlash(c, "success", msgPaymentSuccess, homePath)
}

// Welcome renders GET / with any pending flash message.
func (h *PaymentHandler) Welcome(c *gin.Context) {
	h.renderPage(c, "welcome")
}

// Home renders GET /home, the landing page after a successful payment.
func (h *PaymentHandler) Home(c *gin.Context) {
	h.renderPage(c, "home")
}

func (h *PaymentHandler) renderPage(c *gin.Context, page string) {
	body := gin.H{"page": page}
	if flash := session.PopFlash(c.Request.Context(), h.store, session.ID(c)); flash != nil {
		body["flash"] = flash
	}
	c.JSON(http.StatusOK, body)
}

func (h *PaymentHandler) redirectWithFlash(c *gin.Context, level, message, location string) {
	session.SetFlash(c.Request.Context(), h.store, session.ID(c), level, message)
	c.Redirect(http.StatusFound, location)
}

func initiateMessage(err error) string {
	if errors.Is(err, service.ErrApprovalLinkMissing) {
		return msgUnknownError
	}
	return msgProviderFailure
}
