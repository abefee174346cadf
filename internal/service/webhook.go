package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gostripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	apperrors "github.com/RENDAROBOTIC/rds-website/pkg/errors"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
)

// EventClaimer records that an event id has been processed. Claim returns
// false when the id was already claimed.
type EventClaimer interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

// Fulfiller reacts to a completed checkout.
type Fulfiller interface {
	Fulfill(ctx context.Context, checkout *domain.CompletedCheckout) error
}

// WebhookConfig holds webhook verification settings.
type WebhookConfig struct {
	// Secret is the endpoint signing secret. Empty disables verification.
	Secret    string
	Tolerance time.Duration
}

// WebhookOutcome describes what happened to a delivery that was accepted.
type WebhookOutcome struct {
	Verified  bool
	EventID   string
	EventType string
	Duplicate bool
	Fulfilled bool
}

// WebhookService verifies provider webhooks and dispatches completed checkouts.
type WebhookService struct {
	cfg       WebhookConfig
	claimer   EventClaimer
	fulfiller Fulfiller
	logger    *slog.Logger
}

// NewWebhookService creates a new webhook service. claimer may be nil, in
// which case redeliveries are fulfilled again.
func NewWebhookService(cfg WebhookConfig, claimer EventClaimer, fulfiller Fulfiller, logger *slog.Logger) *WebhookService {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	return &WebhookService{
		cfg:       cfg,
		claimer:   claimer,
		fulfiller: fulfiller,
		logger:    logger,
	}
}

// Handle verifies payload against the Stripe-Signature header and reacts to
// the event. Only a verification failure returns an error; every other path
// is acknowledged.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	if s.cfg.Secret == "" {
		s.logger.WarnContext(ctx, "webhook received without a configured secret, skipping verification",
			slog.Int("bytes", len(payload)),
		)
		webhookEventsTotal.WithLabelValues("unknown", resultUnverified).Inc()
		return &WebhookOutcome{}, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.Secret, webhook.ConstructEventOptions{
		Tolerance:                s.cfg.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		webhookEventsTotal.WithLabelValues("unknown", resultSignatureFailed).Inc()
		s.logger.WarnContext(ctx, "webhook signature verification failed",
			slog.String("error", err.Error()),
		)
		return nil, apperrors.SignatureVerification(err)
	}

	eventType := string(event.Type)
	ctx = logger.WithEventID(ctx, event.ID)
	out := &WebhookOutcome{Verified: true, EventID: event.ID, EventType: eventType}

	if s.alreadyProcessed(ctx, event.ID) {
		webhookEventsTotal.WithLabelValues(eventType, resultDuplicate).Inc()
		s.logger.InfoContext(ctx, "duplicate webhook event acknowledged",
			slog.String("event_id", event.ID),
			slog.String("event_type", eventType),
		)
		out.Duplicate = true
		return out, nil
	}

	switch event.Type {
	case gostripe.EventTypeCheckoutSessionCompleted:
		out.Fulfilled = s.checkoutCompleted(ctx, &event)
	default:
		webhookEventsTotal.WithLabelValues(eventType, resultIgnored).Inc()
		s.logger.DebugContext(ctx, "unhandled webhook event type",
			slog.String("event_id", event.ID),
			slog.String("event_type", eventType),
		)
	}

	return out, nil
}

// alreadyProcessed claims the event id. Claim failures are logged and the
// event is processed anyway.
func (s *WebhookService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.claimer == nil || eventID == "" {
		return false
	}
	claimed, err := s.claimer.Claim(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to claim webhook event, processing anyway",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return !claimed
}

func (s *WebhookService) checkoutCompleted(ctx context.Context, event *gostripe.Event) bool {
	eventType := string(event.Type)

	completed, err := completedCheckout(event)
	if err != nil {
		webhookEventsTotal.WithLabelValues(eventType, resultDecodeFailed).Inc()
		s.logger.ErrorContext(ctx, "failed to decode checkout session",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.logger.InfoContext(ctx, "checkout session completed",
		slog.String("session_id", completed.SessionID),
		slog.String("payment_status", completed.PaymentStatus),
		slog.Int64("amount_total", completed.AmountTotal),
	)

	if err := s.fulfiller.Fulfill(ctx, completed); err != nil {
		webhookEventsTotal.WithLabelValues(eventType, resultFulfillmentFailed).Inc()
		s.logger.ErrorContext(ctx, "checkout fulfillment failed",
			slog.String("session_id", completed.SessionID),
			slog.String("error", err.Error()),
		)
		return false
	}

	webhookEventsTotal.WithLabelValues(eventType, resultFulfilled).Inc()
	return true
}

func completedCheckout(event *gostripe.Event) (*domain.CompletedCheckout, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var cs gostripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	if cs.ID == "" {
		return nil, fmt.Errorf("event %s carries no session id", event.ID)
	}

	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}

	return &domain.CompletedCheckout{
		EventID:       event.ID,
		SessionID:     cs.ID,
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		CustomerEmail: email,
		Province:      cs.Metadata["province"],
		CompletedAt:   time.Unix(event.Created, 0).UTC(),
	}, nil
}

// LogFulfiller only logs completed checkouts.
type LogFulfiller struct {
	logger *slog.Logger
}

// NewLogFulfiller creates a fulfiller that writes one log line per checkout.
func NewLogFulfiller(logger *slog.Logger) *LogFulfiller {
	return &LogFulfiller{logger: logger}
}

// Fulfill logs the checkout.
func (f *LogFulfiller) Fulfill(ctx context.Context, c *domain.CompletedCheckout) error {
	f.logger.InfoContext(ctx, "order ready for fulfillment",
		slog.String("session_id", c.SessionID),
		slog.String("event_id", c.EventID),
		slog.Int64("amount_total", c.AmountTotal),
		slog.String("currency", c.Currency),
	)
	return nil
}
