package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akylbek/payment-system/paypal-checkout/internal/handlers"
	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
	"github.com/akylbek/payment-system/paypal-checkout/internal/service"
	"github.com/akylbek/payment-system/paypal-checkout/internal/session"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	store := session.NewMemoryStore()
	checkout := service.NewCheckout(nil, store, nil, nil, service.CheckoutConfig{ReturnURL: "http://shop.test/payment/status"})
	r := NewRouter(
		handlers.NewPaymentHandler(checkout, store, models.Cart{}),
		handlers.NewPaymentStateHandler(nil),
		RouterOptions{},
	)

	for _, path := range []string{"/health", "/metrics", "/"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/PAY-1/state", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with tracking disabled, got %d", w.Code)
	}
}

func TestRouterSetsSessionCookieOnBrowserRoutes(t *testing.T) {
	store := session.NewMemoryStore()
	checkout := service.NewCheckout(nil, store, nil, nil, service.CheckoutConfig{})
	r := NewRouter(handlers.NewPaymentHandler(checkout, store, models.Cart{}), handlers.NewPaymentStateHandler(nil), RouterOptions{SecureCookie: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/home", nil))

	var found bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.CookieName {
			found = true
			if !ck.Secure {
				t.Fatalf("expected secure cookie")
			}
		}
	}
	if !found {
		t.Fatalf("expected %s cookie", session.CookieName)
	}
}
