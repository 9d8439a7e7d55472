// Package orchestrator drives one checkout attempt: order placement, the
// mobile-money payment prompt and user-triggered status checks. Remote
// failures never escape an action; they end up in the state's ErrorMessage.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/032-extremist/redcart-checkout/internal/checkout"
	"github.com/032-extremist/redcart-checkout/internal/domain"
	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
	"github.com/032-extremist/redcart-checkout/pkg/tracing"
)

const tracerName = "github.com/032-extremist/redcart-checkout/internal/orchestrator"

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, payload *domain.CheckoutPayload) (*domain.CheckoutResult, error)
}

// PaymentGateway starts mobile-money prompts and reads payment status.
type PaymentGateway interface {
	InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error)
	Status(ctx context.Context, paymentID string) (*domain.PaymentStatusResult, error)
}

// CartRefresher resynchronizes the caller's cart after an order is placed.
type CartRefresher interface {
	Refresh(ctx context.Context) error
}

// EventPublisher receives checkout milestones. Errors are logged and never
// change the outcome of an action.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, result *domain.CheckoutResult) error
	OrderFailed(ctx context.Context, method domain.PaymentMethod, cause error) error
	PushSent(ctx context.Context, pending domain.PendingPayment) error
	PushFailed(ctx context.Context, pending domain.PendingPayment, cause error) error
	PaymentConfirmed(ctx context.Context, pending domain.PendingPayment, result *domain.PaymentStatusResult) error
	PaymentFailed(ctx context.Context, pending domain.PendingPayment, result *domain.PaymentStatusResult) error
}

// Orchestrator owns one OrchestrationState. Actions run one at a time; a
// second action started while one is running gets ErrActionInFlight.
type Orchestrator struct {
	orders   OrderPlacer
	payments PaymentGateway
	cart     CartRefresher
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state *domain.OrchestrationState
	busy  bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEvents publishes checkout milestones to p.
func WithEvents(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator in the Idle phase. cart may be nil.
func New(orders OrderPlacer, payments PaymentGateway, cart CartRefresher, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		orders:   orders,
		payments: payments,
		cart:     cart,
		events:   noopEvents{},
		logger:   logger,
		now:      time.Now,
		state:    domain.NewState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() *domain.OrchestrationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Restore resumes a persisted state. A state saved mid-action is settled
// back to the phase it would have rested in.
func (o *Orchestrator) Restore(s *domain.OrchestrationState) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrActionInFlight
	}

	restored := s.Clone()
	if restored.InFlight() {
		if restored.PendingPayment != nil {
			restored.Phase = domain.PhaseAwaitingPaymentAction
		} else {
			restored.Phase = domain.PhaseIdle
		}
	}
	o.state = restored
	return nil
}

// Reset abandons the attempt and returns to Idle. An order that is still
// awaiting payment stays on the server and can be found in order history.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrActionInFlight
	}

	version := o.state.Version
	o.state = domain.NewState()
	o.state.Version = version
	o.state.UpdatedAt = o.now().UTC()
	return nil
}

// SubmitCheckout places an order for cart and, for mobile money, sends the
// payment prompt to form.ShippingPhone. It is valid from Idle or Resolved.
// Only validation failures and misuse are returned; remote failures are
// reported through ErrorMessage.
func (o *Orchestrator) SubmitCheckout(ctx context.Context, cart *domain.Cart, form domain.CheckoutForm) (err error) {
	const action = "submit"
	start := time.Now()
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "checkout.submit",
		trace.WithAttributes(attribute.String("payment.method", string(form.PaymentMethod))),
	)
	var remoteErr error
	defer func() { o.finish(action, start, span, err, remoteErr) }()

	prev, err := o.begin(func(s *domain.OrchestrationState) error {
		if s.Phase != domain.PhaseIdle && s.Phase != domain.PhaseResolved {
			return fmt.Errorf("%w: submit while %s", ErrInvalidTransition, s.Phase)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer o.end()

	o.update(func(s *domain.OrchestrationState) {
		s.Phase = domain.PhaseSubmitting
		s.ErrorMessage = ""
		s.InfoMessage = ""
		s.PendingPayment = nil
	})

	payload, err := checkout.Build(cart, form)
	if err != nil {
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = prev.Phase
			s.ErrorMessage = apperrors.UserMessage(err, msgCheckoutFailed)
		})
		return err
	}

	formCopy := form
	o.update(func(s *domain.OrchestrationState) { s.Form = &formCopy })

	log := logger.WithContext(ctx, o.logger)
	placed, err := o.orders.PlaceOrder(ctx, payload)
	if err != nil {
		remoteErr = err
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = domain.PhaseResolved
			s.ErrorMessage = apperrors.UserMessage(err, msgCheckoutFailed)
		})
		log.WarnContext(ctx, "order placement failed",
			slog.String("payment_method", string(form.PaymentMethod)),
			slog.String("error", err.Error()),
		)
		o.publish(ctx, "order_failed", o.events.OrderFailed(ctx, form.PaymentMethod, err))
		return nil
	}

	span.SetAttributes(attribute.String("order.id", placed.OrderID))
	log.InfoContext(ctx, "order placed",
		slog.String("order_id", placed.OrderID),
		slog.String("status", string(placed.Status)),
		slog.String("payment_id", placed.Payment.ID),
		slog.String("total", placed.Total.StringFixed(2)),
	)
	o.publish(ctx, "order_placed", o.events.OrderPlaced(ctx, placed))

	if form.PaymentMethod == domain.PaymentMethodCard {
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = domain.PhaseResolved
			s.LastResult = &domain.Result{
				OrderID:        placed.OrderID,
				Status:         placed.Status,
				PaymentStatus:  placed.Payment.Status,
				TransactionRef: placed.Payment.TransactionRef,
			}
		})
	} else {
		pending := domain.PendingPayment{OrderID: placed.OrderID, PaymentID: placed.Payment.ID}
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = domain.PhaseAwaitingPaymentAction
			s.PendingPayment = &pending
		})
		remoteErr = o.push(ctx, pending, form.ShippingPhone, known{
			status:        placed.Status,
			paymentStatus: placed.Payment.Status,
		}, msgPushSent, msgPushFailDetail)
	}

	// The server emptied the cart when it placed the order.
	if o.cart != nil {
		if err := o.cart.Refresh(ctx); err != nil {
			log.WarnContext(ctx, "cart refresh after checkout failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// RetryPaymentPush re-sends the payment prompt for the pending payment. It
// never places another order.
func (o *Orchestrator) RetryPaymentPush(ctx context.Context) (err error) {
	const action = "retry_push"
	start := time.Now()
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "checkout.retry_push")
	var remoteErr error
	defer func() { o.finish(action, start, span, err, remoteErr) }()

	snapshot, err := o.begin(func(s *domain.OrchestrationState) error {
		if s.PendingPayment == nil {
			return fmt.Errorf("%w: no pending payment", ErrInvalidTransition)
		}
		if s.Form == nil || s.Form.ShippingPhone == "" {
			return fmt.Errorf("%w: no phone number on record", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer o.end()

	o.update(func(s *domain.OrchestrationState) {
		s.ErrorMessage = ""
		s.InfoMessage = ""
	})

	var last known
	if snapshot.LastResult != nil {
		last = known{status: snapshot.LastResult.Status, paymentStatus: snapshot.LastResult.PaymentStatus}
	}
	span.SetAttributes(attribute.String("order.id", snapshot.PendingPayment.OrderID))
	remoteErr = o.push(ctx, *snapshot.PendingPayment, snapshot.Form.ShippingPhone, last, msgPushResent, msgRetryFailDetail)
	return nil
}

// CheckPaymentStatus asks the provider for the pending payment's status.
// SUCCESS resolves the checkout; FAILED and pending keep the payment open
// for another prompt or check.
func (o *Orchestrator) CheckPaymentStatus(ctx context.Context) (err error) {
	const action = "check_status"
	start := time.Now()
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "checkout.check_status")
	var remoteErr error
	defer func() { o.finish(action, start, span, err, remoteErr) }()

	snapshot, err := o.begin(func(s *domain.OrchestrationState) error {
		if s.PendingPayment == nil {
			return fmt.Errorf("%w: no pending payment", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer o.end()

	pending := *snapshot.PendingPayment
	span.SetAttributes(attribute.String("order.id", pending.OrderID))
	o.update(func(s *domain.OrchestrationState) {
		s.Phase = domain.PhasePolling
		s.ErrorMessage = ""
		s.InfoMessage = ""
	})

	log := logger.WithContext(ctx, o.logger)
	res, err := o.payments.Status(ctx, pending.PaymentID)
	if err != nil {
		remoteErr = err
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = domain.PhaseAwaitingPaymentAction
			s.ErrorMessage = apperrors.UserMessage(err, msgStatusFailed)
		})
		log.WarnContext(ctx, "payment status check failed",
			slog.String("payment_id", pending.PaymentID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	paymentOutcomes.WithLabelValues(string(res.Status)).Inc()
	o.update(func(s *domain.OrchestrationState) {
		ref := res.TransactionRef
		if ref == "" && s.LastResult != nil {
			ref = s.LastResult.TransactionRef
		}
		s.LastResult = &domain.Result{
			OrderID:        pending.OrderID,
			Status:         firstOrderStatus(orderStatus(res.Order), domain.OrderStatusPendingPayment),
			PaymentStatus:  res.Status,
			TransactionRef: ref,
		}

		switch res.Status {
		case domain.PaymentStatusSuccess:
			s.Phase = domain.PhaseResolved
			s.PendingPayment = nil
			s.InfoMessage = msgPaymentSuccess
		case domain.PaymentStatusFailed:
			s.Phase = domain.PhaseAwaitingPaymentAction
			s.InfoMessage = msgPaymentFailed
		default:
			s.Phase = domain.PhaseAwaitingPaymentAction
			s.InfoMessage = msgPaymentPending
		}
	})

	log.InfoContext(ctx, "payment status checked",
		slog.String("order_id", pending.OrderID),
		slog.String("payment_id", pending.PaymentID),
		slog.String("status", string(res.Status)),
	)
	switch res.Status {
	case domain.PaymentStatusSuccess:
		o.publish(ctx, "payment_confirmed", o.events.PaymentConfirmed(ctx, pending, res))
	case domain.PaymentStatusFailed:
		o.publish(ctx, "payment_failed", o.events.PaymentFailed(ctx, pending, res))
	}
	return nil
}

// known is the last order and payment status seen before a push.
type known struct {
	status        domain.OrderStatus
	paymentStatus domain.PaymentStatus
}

// push sends the prompt and applies the push rules:
//
//	status        = response order.status, else last known, else PENDING_PAYMENT
//	paymentStatus = response payment.status, else last known, else PENDING
//	transactionRef is cleared
//
// On failure the pending payment is kept and the result falls back to the
// last known statuses.
func (o *Orchestrator) push(ctx context.Context, pending domain.PendingPayment, phone string, last known, okMsg, failDetail string) error {
	log := logger.WithContext(ctx, o.logger)

	res, err := o.payments.InitiatePush(ctx, domain.PushRequest{PaymentID: pending.PaymentID, PhoneNumber: phone})
	if err != nil {
		o.update(func(s *domain.OrchestrationState) {
			s.Phase = domain.PhaseAwaitingPaymentAction
			s.LastResult = &domain.Result{
				OrderID:       pending.OrderID,
				Status:        firstOrderStatus(last.status, domain.OrderStatusPendingPayment),
				PaymentStatus: firstPaymentStatus(last.paymentStatus, domain.PaymentStatusPending),
			}
			s.ErrorMessage = pushFailedMessage(pending.OrderID, err, failDetail)
		})
		log.WarnContext(ctx, "payment push failed",
			slog.String("order_id", pending.OrderID),
			slog.String("payment_id", pending.PaymentID),
			slog.String("error", err.Error()),
		)
		o.publish(ctx, "push_failed", o.events.PushFailed(ctx, pending, err))
		return err
	}

	var pushedPayment domain.PaymentStatus
	if res.Payment != nil {
		pushedPayment = res.Payment.Status
	}
	o.update(func(s *domain.OrchestrationState) {
		s.Phase = domain.PhaseAwaitingPaymentAction
		s.LastResult = &domain.Result{
			OrderID:       pending.OrderID,
			Status:        firstOrderStatus(orderStatus(res.Order), last.status, domain.OrderStatusPendingPayment),
			PaymentStatus: firstPaymentStatus(pushedPayment, last.paymentStatus, domain.PaymentStatusPending),
		}
		s.InfoMessage = okMsg
	})
	log.InfoContext(ctx, "payment push sent",
		slog.String("order_id", pending.OrderID),
		slog.String("payment_id", pending.PaymentID),
	)
	o.publish(ctx, "push_sent", o.events.PushSent(ctx, pending))
	return nil
}

// begin claims the orchestrator for one action after check accepts the
// current state, and returns a copy of that state.
func (o *Orchestrator) begin(check func(*domain.OrchestrationState) error) (*domain.OrchestrationState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return nil, ErrActionInFlight
	}
	if err := check(o.state); err != nil {
		return nil, err
	}
	o.busy = true
	return o.state.Clone(), nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) update(fn func(*domain.OrchestrationState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.state)
	o.state.UpdatedAt = o.now().UTC()
}

func (o *Orchestrator) finish(action string, start time.Time, span trace.Span, err, remoteErr error) {
	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeRejected
	case remoteErr != nil:
		outcome = outcomeRemoteError
	}
	actionsTotal.WithLabelValues(action, outcome).Inc()
	actionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err == nil {
		err = remoteErr
	}
	tracing.End(span, err, attribute.String("checkout.outcome", outcome))
}

func (o *Orchestrator) publish(ctx context.Context, name string, err error) {
	if err != nil {
		logger.WithContext(ctx, o.logger).WarnContext(ctx, "checkout event not published",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}

func orderStatus(ref *domain.OrderRef) domain.OrderStatus {
	if ref == nil {
		return ""
	}
	return ref.Status
}

func firstOrderStatus(candidates ...domain.OrderStatus) domain.OrderStatus {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func firstPaymentStatus(candidates ...domain.PaymentStatus) domain.PaymentStatus {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

type noopEvents struct{}

func (noopEvents) OrderPlaced(context.Context, *domain.CheckoutResult) error {
	return nil
}

func (noopEvents) OrderFailed(context.Context, domain.PaymentMethod, error) error {
	return nil
}

func (noopEvents) PushSent(context.Context, domain.PendingPayment) error {
	return nil
}

func (noopEvents) PushFailed(context.Context, domain.PendingPayment, error) error {
	return nil
}

func (noopEvents) PaymentConfirmed(context.Context, domain.PendingPayment, *domain.PaymentStatusResult) error {
	return nil
}

func (noopEvents) PaymentFailed(context.Context, domain.PendingPayment, *domain.PaymentStatusResult) error {
	return nil
}
