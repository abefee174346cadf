package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	pkgkafka "github.com/RENDAROBOTIC/rds-website/pkg/kafka"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
)

type publishedEvent struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	published []publishedEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedEvent{topic: topic, event: event})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCheckout() *domain.CompletedCheckout {
	return &domain.CompletedCheckout{
		EventID:       "evt_123",
		SessionID:     "cs_test_abc",
		PaymentStatus: "paid",
		AmountTotal:   2260,
		Currency:      "cad",
		CustomerEmail: "buyer@example.com",
		Province:      "ON",
		CompletedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFulfill_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "", testLogger())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.Fulfill(ctx, sampleCheckout()))

	require.Len(t, pub.published, 1)
	got := pub.published[0]
	assert.Equal(t, TopicCheckoutCompleted, got.topic)
	assert.Equal(t, "evt_123", got.event.EventID)
	assert.Equal(t, EventTypeCheckoutCompleted, got.event.EventType)
	assert.Equal(t, "cs_test_abc", got.event.AggregateID)
	assert.Equal(t, AggregateTypeCheckoutSession, got.event.AggregateType)
	assert.Equal(t, SourceStorefront, got.event.Source)
	assert.Equal(t, "corr-1", got.event.CorrelationID)
	assert.Equal(t, "ON", got.event.Metadata["province"])

	var data CheckoutCompletedData
	require.NoError(t, json.Unmarshal(got.event.Data, &data))
	assert.Equal(t, CheckoutCompletedData{
		SessionID:     "cs_test_abc",
		PaymentStatus: "paid",
		AmountTotal:   2260,
		Currency:      "cad",
		CustomerEmail: "buyer@example.com",
		CompletedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, data)
}

func TestFulfill_CustomTopic(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "orders.paid", testLogger())

	require.NoError(t, p.Fulfill(context.Background(), sampleCheckout()))
	assert.Equal(t, "orders.paid", pub.published[0].topic)
	assert.Empty(t, pub.published[0].event.CorrelationID)
}

func TestFulfill_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("leader not available")}
	p := NewProducer(pub, "", testLogger())

	err := p.Fulfill(context.Background(), sampleCheckout())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestPublishCheckoutCompleted_GeneratesIDWithoutEventID(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "", testLogger())

	c := sampleCheckout()
	c.EventID = ""
	require.NoError(t, p.PublishCheckoutCompleted(context.Background(), c))
	assert.NotEmpty(t, pub.published[0].event.EventID)
}

func TestPublishCheckoutCompleted_WireFormat(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "", testLogger())
	require.NoError(t, p.PublishCheckoutCompleted(context.Background(), sampleCheckout()))

	raw, err := pub.published[0].event.Marshal()
	require.NoError(t, err)

	var restored pkgkafka.Event
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Equal(t, "evt_123", restored.EventID)
	assert.Equal(t, "ON", restored.Metadata["province"])

	var data CheckoutCompletedData
	require.NoError(t, json.Unmarshal(restored.Data, &data))
	assert.Equal(t, int64(2260), data.AmountTotal)
}

func TestPublishCheckoutCompleted_NoProvinceNoMetadata(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "", testLogger())

	c := sampleCheckout()
	c.Province = ""
	require.NoError(t, p.PublishCheckoutCompleted(context.Background(), c))
	assert.NotContains(t, pub.published[0].event.Metadata, "province")
}
