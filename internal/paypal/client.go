package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/paypal-checkout/internal/metrics"
	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

const (
	SandboxAPIBase = "https://api-m.sandbox.paypal.com"
	LiveAPIBase    = "https://api-m.paypal.com"

	// tokens are refreshed this long before PayPal says they expire
	tokenExpiryLeeway = time.Minute
	maxErrorBodyBytes = 64 << 10
)

// ErrConnection wraps transport failures: the request never produced an HTTP response.
var ErrConnection = errors.New("paypal connection failed")

// APIError is PayPal's error payload for a non-2xx response.
type APIError struct {
	StatusCode int           `json:"-"`
	Name       string        `json:"name"`
	Message    string        `json:"message"`
	DebugID    string        `json:"debug_id"`
	Details    []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func (e *APIError) Error() string {
	if e.Name == "" && e.Message == "" {
		return fmt.Sprintf("paypal returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("paypal %s (status %d): %s", e.Name, e.StatusCode, e.Message)
}

// Client talks to the PayPal REST payments API using OAuth2 client credentials.
type Client struct {
	clientID   string
	secret     string
	apiBaseURL string
	httpClient *http.Client
	userAgent  string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// BaseURLForMode maps a configured mode to the PayPal API host.
func BaseURLForMode(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "sandbox", "":
		return SandboxAPIBase, nil
	case "live":
		return LiveAPIBase, nil
	default:
		return "", fmt.Errorf("unknown paypal mode %q", mode)
	}
}

// NewClient builds a client for the given mode ("sandbox" or "live").
func NewClient(clientID, secret, mode string, timeout time.Duration) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	secret = strings.TrimSpace(secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal client id and secret are required")
	}
	base, err := BaseURLForMode(mode)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		clientID:   clientID,
		secret:     secret,
		apiBaseURL: base,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "paypal-checkout/1.0",
		now:        time.Now,
	}, nil
}

// WithBaseURL points the client at a different API host.
func (c *Client) WithBaseURL(base string) *Client {
	c.apiBaseURL = strings.TrimRight(base, "/")
	return c
}

// CreatePayment creates a payment that the payer must approve at the returned approval_url link.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, "create_payment", http.MethodPost, "/v1/payments/payment", req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment looks up a payment by its provider id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	var payment Payment
	path := "/v1/payments/payment/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ExecutePayment finalizes a payer-approved payment.
func (c *Client) ExecutePayment(ctx context.Context, paymentID string, execution PaymentExecution) (*Payment, error) {
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	var payment Payment
	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"
	if err := c.do(ctx, "execute_payment", http.MethodPost, path, execution, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.PayPalRequestDuration.WithLabelValues("oauth_token", "error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()
	metrics.PayPalRequestDuration.WithLabelValues("oauth_token", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("paypal token decode failed: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("paypal token response missing access_token")
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(payload.ExpiresIn)*time.Second - tokenExpiryLeeway)
	return c.accessToken, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := telemetry.Tracer.Start(ctx, "paypal."+operation)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("paypal.operation", operation))

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.PayPalRequestDuration.WithLabelValues(operation, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: %s: %w", ErrConnection, operation, err)
	}
	defer resp.Body.Close()

	metrics.PayPalRequestDuration.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		telemetry.Logger.Warn("PayPal API error",
			zap.String("operation", operation),
			zap.Int("status", apiErr.StatusCode),
			zap.String("name", apiErr.Name),
			zap.String("debug_id", apiErr.DebugID),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal %s response decode failed: %w", operation, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(raw, apiErr); err != nil {
		return apiErr
	}
	if apiErr.Name == "" {
		// OAuth errors use {"error": ..., "error_description": ...}
		var oauth struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(raw, &oauth) == nil {
			apiErr.Name = oauth.Error
			apiErr.Message = oauth.Description
		}
	}
	return apiErr
}
