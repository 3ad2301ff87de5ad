package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/paypal-checkout/internal/config"
	"github.com/akylbek/payment-system/paypal-checkout/internal/events"
	"github.com/akylbek/payment-system/paypal-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/paypal-checkout/internal/metrics"
	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
	"github.com/akylbek/payment-system/paypal-checkout/internal/paypal"
	"github.com/akylbek/payment-system/paypal-checkout/internal/session"
	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

var (
	ErrInvalidCart           = errors.New("invalid cart")
	ErrProviderUnavailable   = errors.New("payment provider request failed")
	ErrApprovalLinkMissing   = errors.New("provider response has no approval_url link")
	ErrMissingCallbackParams = errors.New("callback is missing PayerID or token")
	ErrNoPendingPayment      = errors.New("no pending payment for this session")
	ErrPaymentNotApproved    = errors.New("payment was not approved")
)

// PaymentProvider is the subset of the PayPal client the checkout flow needs.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req paypal.PaymentRequest) (*paypal.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paypal.Payment, error)
	ExecutePayment(ctx context.Context, paymentID string, execution paypal.PaymentExecution) (*paypal.Payment, error)
}

type CheckoutConfig struct {
	ReturnURL  string
	CancelURL  string
	HandoffTTL time.Duration
}

// Result describes a finalized checkout.
type Result struct {
	PaymentID     string
	PayerID       string
	ProviderState string
}

// Checkout runs the create → approve → execute flow against the payment provider.
// repo and publisher are optional.
type Checkout struct {
	provider  PaymentProvider
	store     session.Store
	repo      interfaces.PaymentStateRepository
	publisher events.Publisher
	cfg       CheckoutConfig
}

func NewCheckout(
	provider PaymentProvider,
	store session.Store,
	repo interfaces.PaymentStateRepository,
	publisher events.Publisher,
	cfg CheckoutConfig,
) *Checkout {
	if cfg.HandoffTTL <= 0 {
		cfg.HandoffTTL = 30 * time.Minute
	}
	if cfg.CancelURL == "" {
		cfg.CancelURL = cfg.ReturnURL
	}
	return &Checkout{
		provider:  provider,
		store:     store,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Initiate creates a provider payment for the cart, remembers its id for the
// session and returns the URL the payer must visit to approve it.
func (s *Checkout) Initiate(ctx context.Context, sessionID string, cart models.Cart) (string, error) {
	if err := cart.Validate(); err != nil {
		metrics.CheckoutInitiated.WithLabelValues("invalid_cart").Inc()
		return "", fmt.Errorf("%w: %w", ErrInvalidCart, err)
	}

	total := cart.ItemsTotal()
	payment, err := s.provider.CreatePayment(ctx, s.buildPaymentRequest(cart, total))
	if err != nil {
		metrics.CheckoutInitiated.WithLabelValues("provider_error").Inc()
		telemetry.Logger.Error("Failed to create payment",
			zap.String("session_id", sessionID),
			zap.String("amount", total.StringFixed(2)),
			zap.String("currency", cart.Currency),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	approvalURL, ok := paypal.ApprovalURL(payment.Links)
	if !ok {
		metrics.CheckoutInitiated.WithLabelValues("no_approval_link").Inc()
		telemetry.Logger.Error("Payment created without approval link",
			zap.String("payment_id", payment.ID),
			zap.Int("links", len(payment.Links)),
		)
		return "", ErrApprovalLinkMissing
	}

	if err := s.store.Put(ctx, sessionID, session.PaymentIDKey, payment.ID, s.cfg.HandoffTTL); err != nil {
		metrics.CheckoutInitiated.WithLabelValues("session_error").Inc()
		return "", fmt.Errorf("storing payment reference: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.InsertInitialState(ctx, payment.ID, models.StateCreated, total.StringFixed(2), cart.Currency); err != nil {
			telemetry.Logger.Warn("Failed to record payment state",
				zap.String("payment_id", payment.ID),
				zap.Error(err),
			)
		}
	}
	s.publishStateChanged(ctx, payment.ID, "", models.StateCreated)

	metrics.CheckoutInitiated.WithLabelValues("redirected").Inc()
	telemetry.Logger.Info("Payment created",
		zap.String("payment_id", payment.ID),
		zap.String("amount", total.StringFixed(2)),
		zap.String("currency", cart.Currency),
	)

	return approvalURL, nil
}

// Finalize consumes the session's payment reference and executes the payment
// with the payer id from the provider callback. The reference is consumed
// before any validation, so a callback can be acted on at most once.
func (s *Checkout) Finalize(ctx context.Context, sessionID string, params models.CallbackParams) (*Result, error) {
	paymentID, takeErr := s.store.Take(ctx, sessionID, session.PaymentIDKey)

	if !params.Complete() {
		metrics.CheckoutFinalized.WithLabelValues("missing_params").Inc()
		if takeErr == nil {
			s.markFailed(ctx, paymentID)
		}
		return nil, ErrMissingCallbackParams
	}

	if takeErr != nil {
		metrics.CheckoutFinalized.WithLabelValues("no_pending_payment").Inc()
		if errors.Is(takeErr, session.ErrNotFound) {
			return nil, ErrNoPendingPayment
		}
		return nil, fmt.Errorf("reading payment reference: %w", takeErr)
	}

	payerID := strings.TrimSpace(params.PayerID)
	if s.repo != nil {
		if err := s.repo.SetPayerID(ctx, paymentID, payerID); err != nil {
			telemetry.Logger.Warn("Failed to record payer id", zap.String("payment_id", paymentID), zap.Error(err))
		}
	}

	payment, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, s.providerFailure(ctx, paymentID, payerID, "get", err)
	}

	executed, err := s.provider.ExecutePayment(ctx, payment.ID, paypal.PaymentExecution{PayerID: payerID})
	if err != nil {
		return nil, s.providerFailure(ctx, paymentID, payerID, "execute", err)
	}

	result := &Result{PaymentID: paymentID, PayerID: payerID, ProviderState: executed.State}
	approved := executed.State == models.ProviderStateApproved

	if approved {
		s.transitionState(ctx, paymentID, models.StateCreated, models.StateApproved)
		metrics.CheckoutFinalized.WithLabelValues("approved").Inc()
		telemetry.Logger.Info("Payment approved", zap.String("payment_id", paymentID), zap.String("payer_id", payerID))
	} else {
		s.markFailed(ctx, paymentID)
		metrics.CheckoutFinalized.WithLabelValues("not_approved").Inc()
		telemetry.Logger.Warn("Payment not approved",
			zap.String("payment_id", paymentID),
			zap.String("state", executed.State),
			zap.String("failure_reason", executed.FailureReason),
		)
	}

	s.publishCompleted(ctx, models.CheckoutCompletedEvent{
		PaymentID:     paymentID,
		PayerID:       payerID,
		ProviderState: executed.State,
		Approved:      approved,
		Timestamp:     time.Now(),
	})

	if !approved {
		return result, ErrPaymentNotApproved
	}
	return result, nil
}

func (s *Checkout) providerFailure(ctx context.Context, paymentID, payerID, step string, err error) error {
	metrics.CheckoutFinalized.WithLabelValues("provider_error").Inc()
	telemetry.Logger.Error("Payment execution failed",
		zap.String("payment_id", paymentID),
		zap.String("step", step),
		zap.Error(err),
	)
	s.markFailed(ctx, paymentID)
	s.publishCompleted(ctx, models.CheckoutCompletedEvent{
		PaymentID: paymentID,
		PayerID:   payerID,
		Timestamp: time.Now(),
	})
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

func (s *Checkout) buildPaymentRequest(cart models.Cart, total decimal.Decimal) paypal.PaymentRequest {
	items := make([]paypal.Item, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, paypal.Item{
			Name:     item.Name,
			Currency: item.Currency,
			Quantity: strconv.FormatInt(item.Quantity, 10),
			Price:    item.Price.StringFixed(2),
		})
	}

	return paypal.PaymentRequest{
		Intent: models.IntentSale,
		Payer:  paypal.Payer{PaymentMethod: models.PaymentMethodPayPal},
		Transactions: []paypal.Transaction{{
			Amount:      paypal.Amount{Currency: cart.Currency, Total: total.StringFixed(2)},
			ItemList:    &paypal.ItemList{Items: items},
			Description: cart.Description,
		}},
		RedirectURLs: paypal.RedirectURLs{
			ReturnURL: s.cfg.ReturnURL,
			CancelURL: s.cfg.CancelURL,
		},
	}
}

func (s *Checkout) markFailed(ctx context.Context, paymentID string) {
	s.transitionState(ctx, paymentID, models.StateCreated, models.StateFailed)
}

// transitionState is best effort: tracking failures never change the checkout outcome.
func (s *Checkout) transitionState(ctx context.Context, paymentID string, from, to models.PaymentState) {
	if s.repo != nil {
		rows, err := s.repo.TransitionState(ctx, paymentID, from, to)
		if err != nil {
			telemetry.Logger.Warn("Failed to transition payment state",
				zap.String("payment_id", paymentID),
				zap.Error(err),
			)
			return
		}
		if rows == 0 {
			telemetry.Logger.Warn("Invalid payment state transition",
				zap.String("payment_id", paymentID),
				zap.String("from_state", string(from)),
				zap.String("to_state", string(to)),
			)
			return
		}
	}

	s.publishStateChanged(ctx, paymentID, from, to)

	telemetry.Logger.Info("Payment state transition",
		zap.String("payment_id", paymentID),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(to)),
	)
}

func (s *Checkout) publishStateChanged(ctx context.Context, paymentID string, from, to models.PaymentState) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishStateChanged(ctx, models.StateChangedEvent{
		PaymentID:     paymentID,
		State:         to,
		PreviousState: from,
		Timestamp:     time.Now(),
	})
	if err != nil {
		telemetry.Logger.Warn("Failed to publish state change", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (s *Checkout) publishCompleted(ctx context.Context, event models.CheckoutCompletedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCheckoutCompleted(ctx, event); err != nil {
		telemetry.Logger.Warn("Failed to publish checkout completion", zap.String("payment_id", event.PaymentID), zap.Error(err))
	}
}

// DefaultCart builds the cart served by GET /payment from configuration.
func DefaultCart(cfg config.CartConfig) (models.Cart, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(cfg.ItemPrice))
	if err != nil {
		return models.Cart{}, fmt.Errorf("default cart price %q: %w", cfg.ItemPrice, err)
	}
	cart := models.Cart{
		Currency:    cfg.Currency,
		Description: cfg.Description,
		Items: []models.CartItem{{
			Name:     cfg.ItemName,
			Currency: cfg.Currency,
			Quantity: cfg.ItemQty,
			Price:    price,
		}},
	}
	if err := cart.Validate(); err != nil {
		return models.Cart{}, fmt.Errorf("default cart: %w", err)
	}
	return cart, nil
}
