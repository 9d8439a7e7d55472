// Package event publishes checkout and payment milestones to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	pkgkafka "github.com/032-extremist/redcart-checkout/pkg/kafka"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
)

// Event types. The topic for each is pkgkafka.Topic applied to the type.
const (
	TypeOrderPlaced      = "checkout.order_placed"
	TypeOrderFailed      = "checkout.order_failed"
	TypePushSent         = "payment.push_sent"
	TypePushFailed       = "payment.push_failed"
	TypePaymentConfirmed = "payment.confirmed"
	TypePaymentFailed    = "payment.failed"
)

// Kafka topics for checkout events.
var (
	TopicOrderPlaced      = pkgkafka.Topic("checkout", "order_placed")
	TopicOrderFailed      = pkgkafka.Topic("checkout", "order_failed")
	TopicPushSent         = pkgkafka.Topic("payment", "push_sent")
	TopicPushFailed       = pkgkafka.Topic("payment", "push_failed")
	TopicPaymentConfirmed = pkgkafka.Topic("payment", "confirmed")
	TopicPaymentFailed    = pkgkafka.Topic("payment", "failed")
)

// Topics lists every topic this package writes to.
func Topics() []string {
	return []string{
		TopicOrderPlaced, TopicOrderFailed,
		TopicPushSent, TopicPushFailed,
		TopicPaymentConfirmed, TopicPaymentFailed,
	}
}

// SourceCheckoutBFF identifies events published by this service.
const SourceCheckoutBFF = "checkout-bff"

// OrderPlacedData is the payload for checkout.order_placed.
type OrderPlacedData struct {
	OrderID       string               `json:"order_id"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentID     string               `json:"payment_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Total         string               `json:"total"`
	NextAction    string               `json:"next_action,omitempty"`
}

// OrderFailedData is the payload for checkout.order_failed.
type OrderFailedData struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Reason        string               `json:"reason"`
}

// PaymentData is the payload for the payment.* events.
type PaymentData struct {
	OrderID        string               `json:"order_id"`
	PaymentID      string               `json:"payment_id"`
	Status         domain.PaymentStatus `json:"status,omitempty"`
	TransactionRef string               `json:"transaction_ref,omitempty"`
	Reason         string               `json:"reason,omitempty"`
}

// Publisher writes one envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes checkout domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout BFF.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// OrderPlaced publishes a checkout.order_placed event.
func (p *Producer) OrderPlaced(ctx context.Context, result *domain.CheckoutResult) error {
	data := OrderPlacedData{
		OrderID:       result.OrderID,
		Status:        result.Status,
		PaymentID:     result.Payment.ID,
		PaymentMethod: result.Payment.Provider,
		PaymentStatus: result.Payment.Status,
		Total:         result.Total.StringFixed(2),
		NextAction:    result.NextAction,
	}
	return p.publish(ctx, TypeOrderPlaced, TopicOrderPlaced, result.OrderID, data)
}

// OrderFailed publishes a checkout.order_failed event. No order exists, so
// the caller key is the aggregate.
func (p *Producer) OrderFailed(ctx context.Context, method domain.PaymentMethod, cause error) error {
	data := OrderFailedData{PaymentMethod: method, Reason: cause.Error()}
	return p.publish(ctx, TypeOrderFailed, TopicOrderFailed, logger.CallerFromContext(ctx), data)
}

// PushSent publishes a payment.push_sent event.
func (p *Producer) PushSent(ctx context.Context, pending domain.PendingPayment) error {
	data := PaymentData{OrderID: pending.OrderID, PaymentID: pending.PaymentID}
	return p.publish(ctx, TypePushSent, TopicPushSent, pending.PaymentID, data)
}

// PushFailed publishes a payment.push_failed event.
func (p *Producer) PushFailed(ctx context.Context, pending domain.PendingPayment, cause error) error {
	data := PaymentData{OrderID: pending.OrderID, PaymentID: pending.PaymentID, Reason: cause.Error()}
	return p.publish(ctx, TypePushFailed, TopicPushFailed, pending.PaymentID, data)
}

// PaymentConfirmed publishes a payment.confirmed event.
func (p *Producer) PaymentConfirmed(ctx context.Context, pending domain.PendingPayment, result *domain.PaymentStatusResult) error {
	data := PaymentData{
		OrderID:        pending.OrderID,
		PaymentID:      pending.PaymentID,
		Status:         result.Status,
		TransactionRef: result.TransactionRef,
	}
	return p.publish(ctx, TypePaymentConfirmed, TopicPaymentConfirmed, pending.PaymentID, data)
}

// PaymentFailed publishes a payment.failed event.
func (p *Producer) PaymentFailed(ctx context.Context, pending domain.PendingPayment, result *domain.PaymentStatusResult) error {
	data := PaymentData{
		OrderID:        pending.OrderID,
		PaymentID:      pending.PaymentID,
		Status:         result.Status,
		TransactionRef: result.TransactionRef,
	}
	return p.publish(ctx, TypePaymentFailed, TopicPaymentFailed, pending.PaymentID, data)
}

func (p *Producer) publish(ctx context.Context, eventType, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, aggregateID, SourceCheckoutBFF, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))
	if caller := logger.CallerFromContext(ctx); caller != "" {
		event.WithMetadata("caller", caller)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published "+eventType+" event",
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// Noop discards every event. It is used when Kafka is disabled.
type Noop struct{}

func (Noop) OrderPlaced(context.Context, *domain.CheckoutResult) error {
	return nil
}

func (Noop) OrderFailed(context.Context, domain.PaymentMethod, error) error {
	return nil
}

func (Noop) PushSent(context.Context, domain.PendingPayment) error {
	return nil
}

func (Noop) PushFailed(context.Context, domain.PendingPayment, error) error {
	return nil
}

func (Noop) PaymentConfirmed(context.Context, domain.PendingPayment, *domain.PaymentStatusResult) error {
	return nil
}

func (Noop) PaymentFailed(context.Context, domain.PendingPayment, *domain.PaymentStatusResult) error {
	return nil
}
