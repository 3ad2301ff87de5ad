package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/paypal-checkout/internal/api"
	"github.com/akylbek/payment-system/paypal-checkout/internal/config"
	"github.com/akylbek/payment-system/paypal-checkout/internal/events"
	"github.com/akylbek/payment-system/paypal-checkout/internal/handlers"
	"github.com/akylbek/payment-system/paypal-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/paypal-checkout/internal/paypal"
	"github.com/akylbek/payment-system/paypal-checkout/internal/repository"
	"github.com/akylbek/payment-system/paypal-checkout/internal/service"
	"github.com/akylbek/payment-system/paypal-checkout/internal/session"
	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if err := telemetry.InitTelemetry("paypal-checkout", telemetry.Options{
		Debug:          cfg.Debug,
		JaegerEndpoint: cfg.JaegerEndpoint,
	}); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}

	err := run(cfg)
	if err != nil {
		telemetry.Logger.Error("PayPal checkout stopped", zap.Error(err))
	}
	_ = telemetry.Shutdown(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// run wires the service and blocks until SIGINT/SIGTERM or a server failure.
// Every resource it opens is closed before it returns.
func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	telemetry.Logger.Info("Starting PayPal checkout", zap.String("mode", cfg.PayPalMode))

	client, err := paypal.NewClient(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalMode, cfg.PayPalHTTPTimeout)
	if err != nil {
		return fmt.Errorf("creating PayPal client: %w", err)
	}

	// Session store
	var store session.Store
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		store = session.NewRedisStore(redisClient)
	} else {
		telemetry.Logger.Warn("REDIS_URL not set, keeping sessions in process memory")
		store = session.NewMemoryStore()
	}

	// Payment state tracking
	var repo interfaces.PaymentStateRepository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		stateRepo := repository.NewPaymentStateRepository(db)
		if err := stateRepo.InitDB(); err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		repo = stateRepo
	}

	// Event transports
	var kafkaWriter *kafka.Writer
	if cfg.KafkaBrokers != "" {
		kafkaWriter = &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
			Topic:    events.StateChangedTopic,
			Balancer: &kafka.LeastBytes{},
		}
		defer kafkaWriter.Close()
	}

	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Close()
	}

	defaultCart, err := service.DefaultCart(cfg.DefaultCart)
	if err != nil {
		return fmt.Errorf("invalid default cart: %w", err)
	}

	checkout := service.NewCheckout(client, store, repo, events.NewBrokerPublisher(kafkaWriter, nc), service.CheckoutConfig{
		ReturnURL:  cfg.BaseURL + "/payment/status",
		CancelURL:  cfg.BaseURL + "/payment/status",
		HandoffTTL: cfg.HandoffTTL,
	})

	r := api.NewRouter(
		handlers.NewPaymentHandler(checkout, store, defaultCart),
		handlers.NewPaymentStateHandler(repo),
		api.RouterOptions{
			Debug:        cfg.Debug,
			SecureCookie: strings.HasPrefix(cfg.BaseURL, "https://"),
		},
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		telemetry.Logger.Info("PayPal checkout starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving HTTP: %w", err)
	case <-quit:
	}

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}
