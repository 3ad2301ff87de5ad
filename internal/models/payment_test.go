package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func defaultCart() Cart {
	return Cart{
		Currency:    "usd",
		Description: "Your transaction description",
		Items: []CartItem{
			{Name: "Item 1", Quantity: 2, Price: decimal.NewFromInt(15)},
		},
	}
}

func TestCartValidateNormalizesCurrency(t *testing.T) {
	cart := defaultCart()
	if err := cart.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Currency != "USD" {
		t.Fatalf("expected USD, got %q", cart.Currency)
	}
	if cart.Items[0].Currency != "USD" {
		t.Fatalf("expected item to inherit cart currency, got %q", cart.Items[0].Currency)
	}
	if got := cart.ItemsTotal().StringFixed(2); got != "30.00" {
		t.Fatalf("expected total 30.00, got %s", got)
	}
}

func TestCartValidateRejectsTotalMismatch(t *testing.T) {
	cart := defaultCart()
	declared := decimal.NewFromInt(25)
	cart.Total = &declared

	err := cart.Validate()
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestCartValidateAcceptsMatchingTotal(t *testing.T) {
	cart := defaultCart()
	declared, _ := decimal.NewFromString("30.00")
	cart.Total = &declared

	if err := cart.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCartValidateRejectsBadItems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Cart)
		wantErr string
	}{
		{"no items", func(c *Cart) { c.Items = nil }, "no items"},
		{"no currency", func(c *Cart) { c.Currency = " " }, "currency is required"},
		{"zero quantity", func(c *Cart) { c.Items[0].Quantity = 0 }, "quantity"},
		{"negative price", func(c *Cart) { c.Items[0].Price = decimal.NewFromInt(-1) }, "price"},
		{"mixed currency", func(c *Cart) { c.Items[0].Currency = "EUR" }, "differs"},
		{"blank name", func(c *Cart) { c.Items[0].Name = "" }, "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := defaultCart()
			tt.mutate(&cart)
			err := cart.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCartValidateRejectsSubCentAmounts(t *testing.T) {
	cart := defaultCart()
	cart.Items[0] = CartItem{Name: "Item 1", Quantity: 3, Price: decimal.RequireFromString("0.333")}
	declared := decimal.RequireFromString("0.999")
	cart.Total = &declared

	if err := cart.Validate(); !errors.Is(err, ErrSubCentAmount) {
		t.Fatalf("expected ErrSubCentAmount for sub-cent price, got %v", err)
	}

	cart = defaultCart()
	declared = decimal.RequireFromString("30.001")
	cart.Total = &declared
	if err := cart.Validate(); !errors.Is(err, ErrSubCentAmount) {
		t.Fatalf("expected ErrSubCentAmount for sub-cent total, got %v", err)
	}
}

func TestCartValidateAcceptsTrailingZeros(t *testing.T) {
	cart := defaultCart()
	cart.Items[0].Price = decimal.RequireFromString("15.000")

	if err := cart.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
