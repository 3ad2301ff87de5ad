package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

type Config struct {
	Port    string
	BaseURL string
	Debug   bool

	PayPalClientID    string
	PayPalSecret      string
	PayPalMode        string
	PayPalHTTPTimeout time.Duration

	HandoffTTL  time.Duration
	DefaultCart CartConfig

	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
}

// CartConfig describes the cart used by GET /payment when the caller does not supply one.
type CartConfig struct {
	Currency    string
	Description string
	ItemName    string
	ItemPrice   string
	ItemQty     int64
}

func Load() *Config {
	port := getEnv("PORT", "8084")

	return &Config{
		Port:    port,
		BaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:"+port), "/"),
		Debug:   getEnvAsBool("APP_DEBUG", false),

		PayPalClientID:    os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:      os.Getenv("PAYPAL_SECRET"),
		PayPalMode:        strings.ToLower(getEnv("PAYPAL_MODE", ModeSandbox)),
		PayPalHTTPTimeout: getEnvAsDuration("PAYPAL_HTTP_TIMEOUT", 30*time.Second),

		HandoffTTL: getEnvAsDuration("CHECKOUT_HANDOFF_TTL", 30*time.Minute),
		DefaultCart: CartConfig{
			Currency:    strings.ToUpper(getEnv("CHECKOUT_CURRENCY", "USD")),
			Description: getEnv("CHECKOUT_DESCRIPTION", "Your transaction description"),
			ItemName:    getEnv("CHECKOUT_ITEM_NAME", "Item 1"),
			ItemPrice:   getEnv("CHECKOUT_ITEM_PRICE", "15"),
			ItemQty:     getEnvAsInt64("CHECKOUT_ITEM_QUANTITY", 2),
		},

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		NatsURL:        os.Getenv("NATS_URL"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "jaeger:4318"),
	}
}

// Validate reports configuration that would prevent the service from talking to PayPal.
func (c *Config) Validate() error {
	var errs []error
	if c.PayPalClientID == "" {
		errs = append(errs, errors.New("PAYPAL_CLIENT_ID is required"))
	}
	if c.PayPalSecret == "" {
		errs = append(errs, errors.New("PAYPAL_SECRET is required"))
	}
	if c.PayPalMode != ModeSandbox && c.PayPalMode != ModeLive {
		errs = append(errs, fmt.Errorf("PAYPAL_MODE must be %q or %q, got %q", ModeSandbox, ModeLive, c.PayPalMode))
	}
	if c.HandoffTTL <= 0 {
		errs = append(errs, errors.New("CHECKOUT_HANDOFF_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
