package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	StateCreated  PaymentState = "CREATED"
	StateApproved PaymentState = "APPROVED"
	StateFailed   PaymentState = "FAILED"
)

const (
	IntentSale          = "sale"
	PaymentMethodPayPal = "paypal"

	// ProviderStateApproved is the only execute result treated as a completed payment.
	ProviderStateApproved = "approved"
)

var (
	ErrEmptyCart      = errors.New("cart has no items")
	ErrAmountMismatch = errors.New("cart total does not match the sum of its items")
	ErrSubCentAmount  = errors.New("amount has more decimal places than the currency allows")
)

// PayPal's payments API takes amounts with at most two decimal places.
const amountDecimalPlaces = 2

// CartItem is a single purchasable line. Price is the unit price.
type CartItem struct {
	Name     string          `json:"name" binding:"required"`
	Currency string          `json:"currency"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Cart is what the payer is checking out. Total is optional; when present it
// must equal the sum of the items.
type Cart struct {
	Currency    string           `json:"currency" binding:"required"`
	Description string           `json:"description"`
	Items       []CartItem       `json:"items" binding:"required"`
	Total       *decimal.Decimal `json:"total,omitempty"`
}

// Validate normalizes currencies and checks quantities, prices and the declared total.
func (c *Cart) Validate() error {
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		return errors.New("cart currency is required")
	}
	if len(c.Items) == 0 {
		return ErrEmptyCart
	}

	for i := range c.Items {
		item := &c.Items[i]
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return fmt.Errorf("item %d: name is required", i)
		}
		item.Currency = strings.ToUpper(strings.TrimSpace(item.Currency))
		if item.Currency == "" {
			item.Currency = c.Currency
		}
		if item.Currency != c.Currency {
			return fmt.Errorf("item %q: currency %s differs from cart currency %s", item.Name, item.Currency, c.Currency)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %q: quantity must be at least 1", item.Name)
		}
		if !item.Price.IsPositive() {
			return fmt.Errorf("item %q: price must be greater than zero", item.Name)
		}
		if !wholeMinorUnits(item.Price) {
			return fmt.Errorf("%w: item %q price %s", ErrSubCentAmount, item.Name, item.Price.String())
		}
	}

	if c.Total != nil && !wholeMinorUnits(*c.Total) {
		return fmt.Errorf("%w: declared total %s", ErrSubCentAmount, c.Total.String())
	}
	if c.Total != nil && !c.Total.Equal(c.ItemsTotal()) {
		return fmt.Errorf("%w: declared %s, items %s", ErrAmountMismatch, c.Total.StringFixed(2), c.ItemsTotal().StringFixed(2))
	}
	return nil
}

// wholeMinorUnits reports whether d survives rounding to cents unchanged,
// so the per-item strings sent to PayPal add up to the sent total.
func wholeMinorUnits(d decimal.Decimal) bool {
	return d.Equal(d.Round(amountDecimalPlaces))
}

// ItemsTotal sums price*quantity over all items.
func (c *Cart) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// PaymentStateInfo represents the current state info of a payment
type PaymentStateInfo struct {
	PaymentID     string
	State         string
	PreviousState string
	Amount        string
	Currency      string
	PayerID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StateChangedEvent is published whenever a tracked payment changes state.
type StateChangedEvent struct {
	PaymentID     string       `json:"payment_id"`
	State         PaymentState `json:"state"`
	PreviousState PaymentState `json:"previous_state"`
	Timestamp     time.Time    `json:"timestamp"`
}

// CheckoutCompletedEvent is published once per finalized checkout.
type CheckoutCompletedEvent struct {
	PaymentID     string    `json:"payment_id"`
	PayerID       string    `json:"payer_id,omitempty"`
	ProviderState string    `json:"provider_state,omitempty"`
	Approved      bool      `json:"approved"`
	Timestamp     time.Time `json:"timestamp"`
}

// CallbackParams are the query parameters PayPal appends to the return URL.
type CallbackParams struct {
	PayerID string `form:"PayerID"`
	Token   string `form:"token"`
}

func (p CallbackParams) Complete() bool {
	return strings.TrimSpace(p.PayerID) != "" && strings.TrimSpace(p.Token) != ""
}
