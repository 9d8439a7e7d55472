package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	pkgkafka "github.com/032-extremist/redcart-checkout/pkg/kafka"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: event})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{
		"redcart.checkout.order_placed",
		"redcart.checkout.order_failed",
		"redcart.payment.push_sent",
		"redcart.payment.push_failed",
		"redcart.payment.confirmed",
		"redcart.payment.failed",
	}, Topics())
}

func TestOrderPlaced(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, testLogger())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	ctx = logger.WithCaller(ctx, "user-42")

	err := p.OrderPlaced(ctx, &domain.CheckoutResult{
		OrderID:    "ORD1",
		Status:     domain.OrderStatusConfirmed,
		Payment:    domain.Payment{ID: "PAY1", Provider: domain.PaymentMethodCard, Status: domain.PaymentStatusSuccess},
		Total:      decimal.RequireFromString("49.98"),
		NextAction: "NONE",
	})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)

	sent := pub.sent[0]
	assert.Equal(t, TopicOrderPlaced, sent.topic)
	assert.Equal(t, TypeOrderPlaced, sent.event.EventType)
	assert.Equal(t, "checkout", sent.event.AggregateType)
	assert.Equal(t, "ORD1", sent.event.AggregateID)
	assert.Equal(t, "corr-1", sent.event.CorrelationID)
	assert.Equal(t, "user-42", sent.event.Metadata["caller"])
	assert.Equal(t, SourceCheckoutBFF, sent.event.Source)

	var data OrderPlacedData
	require.NoError(t, sent.event.UnmarshalData(&data))
	assert.Equal(t, "49.98", data.Total)
	assert.Equal(t, domain.PaymentMethodCard, data.PaymentMethod)
}

func TestPaymentEvents_KeyedByPayment(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, testLogger())
	pending := domain.PendingPayment{OrderID: "ORD2", PaymentID: "PAY2"}
	ctx := context.Background()

	require.NoError(t, p.PushSent(ctx, pending))
	require.NoError(t, p.PushFailed(ctx, pending, errors.New("connection refused")))
	require.NoError(t, p.PaymentConfirmed(ctx, pending, &domain.PaymentStatusResult{Status: domain.PaymentStatusSuccess, TransactionRef: "TXN9"}))
	require.NoError(t, p.PaymentFailed(ctx, pending, &domain.PaymentStatusResult{Status: domain.PaymentStatusFailed}))

	require.Len(t, pub.sent, 4)
	wantTopics := []string{TopicPushSent, TopicPushFailed, TopicPaymentConfirmed, TopicPaymentFailed}
	for i, s := range pub.sent {
		assert.Equal(t, wantTopics[i], s.topic)
		assert.Equal(t, "PAY2", s.event.AggregateID)
		assert.Equal(t, "payment", s.event.AggregateType)
		assert.Empty(t, s.event.Metadata)
	}

	var failed PaymentData
	require.NoError(t, pub.sent[1].event.UnmarshalData(&failed))
	assert.Equal(t, "connection refused", failed.Reason)

	var confirmed PaymentData
	require.NoError(t, pub.sent[2].event.UnmarshalData(&confirmed))
	assert.Equal(t, "TXN9", confirmed.TransactionRef)
}

func TestOrderFailed_KeyedByCaller(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, testLogger())
	ctx := logger.WithCaller(context.Background(), "user-42")

	require.NoError(t, p.OrderFailed(ctx, domain.PaymentMethodMobileMoney, errors.New("out of stock")))
	assert.Equal(t, "user-42", pub.sent[0].event.AggregateID)
}

func TestPublishError(t *testing.T) {
	p := NewProducer(&fakePublisher{err: errors.New("broker down")}, testLogger())

	err := p.PushSent(context.Background(), domain.PendingPayment{OrderID: "ORD2", PaymentID: "PAY2"})
	assert.ErrorContains(t, err, "publish payment.push_sent event")
}

func TestNoop(t *testing.T) {
	var n Noop
	assert.NoError(t, n.OrderPlaced(context.Background(), nil))
	assert.NoError(t, n.PushFailed(context.Background(), domain.PendingPayment{}, errors.New("x")))
}
