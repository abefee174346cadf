package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	pkgkafka "github.com/RENDAROBOTIC/rds-website/pkg/kafka"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
)

// TopicCheckoutCompleted is the default topic for completed checkouts.
const TopicCheckoutCompleted = "storefront.checkout.completed"

// Event type, aggregate and source identifiers.
const (
	EventTypeCheckoutCompleted   = "checkout.completed"
	AggregateTypeCheckoutSession = "checkout_session"
	SourceStorefront             = "storefront"
)

// CheckoutCompletedData is the payload for a checkout.completed event.
type CheckoutCompletedData struct {
	SessionID     string    `json:"session_id"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	AmountTotal   int64     `json:"amount_total"`
	Currency      string    `json:"currency,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher sends an event envelope to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  Publisher
	topic  string
	logger *slog.Logger
}

// NewProducer creates a new event producer. An empty topic uses
// TopicCheckoutCompleted.
func NewProducer(kafka Publisher, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = TopicCheckoutCompleted
	}
	return &Producer{
		kafka:  kafka,
		topic:  topic,
		logger: logger,
	}
}

// PublishCheckoutCompleted publishes a checkout.completed event. The envelope
// id is the provider's event id so consumers can drop redeliveries.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, c *domain.CompletedCheckout) error {
	data := CheckoutCompletedData{
		SessionID:     c.SessionID,
		PaymentStatus: c.PaymentStatus,
		AmountTotal:   c.AmountTotal,
		Currency:      c.Currency,
		CustomerEmail: c.CustomerEmail,
		CompletedAt:   c.CompletedAt,
	}

	evt, err := pkgkafka.NewEvent(EventTypeCheckoutCompleted, c.SessionID, AggregateTypeCheckoutSession, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create checkout.completed event: %w", err)
	}
	evt.WithID(c.EventID)
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if c.Province != "" {
		evt.WithMetadata("province", c.Province)
	}

	if err := p.kafka.Publish(ctx, p.topic, evt); err != nil {
		return fmt.Errorf("publish checkout.completed: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.completed event",
		slog.String("session_id", c.SessionID),
		slog.String("event_id", evt.EventID),
		slog.String("topic", p.topic),
	)
	return nil
}

// Fulfill hands the checkout to downstream consumers.
func (p *Producer) Fulfill(ctx context.Context, c *domain.CompletedCheckout) error {
	p.logger.InfoContext(ctx, "order ready for fulfillment",
		slog.String("session_id", c.SessionID),
		slog.String("event_id", c.EventID),
		slog.Int64("amount_total", c.AmountTotal),
		slog.String("currency", c.Currency),
	)
	return p.PublishCheckoutCompleted(ctx, c)
}
