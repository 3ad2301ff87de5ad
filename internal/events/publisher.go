package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
)

const (
	StateChangedTopic        = "payment.state.changed"
	CheckoutCompletedSubject = "checkout.completed"
)

// Publisher fans checkout events out to downstream consumers.
type Publisher interface {
	PublishStateChanged(ctx context.Context, event models.StateChangedEvent) error
	PublishCheckoutCompleted(ctx context.Context, event models.CheckoutCompletedEvent) error
}

// BrokerPublisher writes state changes to Kafka and completion notices to NATS.
// Either transport may be nil, in which case that event type is dropped.
type BrokerPublisher struct {
	kafkaWriter *kafka.Writer
	nc          *nats.Conn
}

func NewBrokerPublisher(kafkaWriter *kafka.Writer, nc *nats.Conn) *BrokerPublisher {
	return &BrokerPublisher{kafkaWriter: kafkaWriter, nc: nc}
}

func (p *BrokerPublisher) PublishStateChanged(ctx context.Context, event models.StateChangedEvent) error {
	if p == nil || p.kafkaWriter == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: payload,
	})
}

func (p *BrokerPublisher) PublishCheckoutCompleted(_ context.Context, event models.CheckoutCompletedEvent) error {
	if p == nil || p.nc == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(CheckoutCompletedSubject, payload)
}
