package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
)

// PaymentStateRepository defines the contract for payment state data access
type PaymentStateRepository interface {
	InsertInitialState(ctx context.Context, paymentID string, state models.PaymentState, amount, currency string) error
	TransitionState(ctx context.Context, paymentID string, from, to models.PaymentState) (int64, error)
	SetPayerID(ctx context.Context, paymentID, payerID string) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.PaymentStateInfo, error)
}
