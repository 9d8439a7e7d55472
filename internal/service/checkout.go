// Package service runs checkout actions for one caller at a time: it loads
// the caller's orchestration state, runs the action and saves the result.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/032-extremist/redcart-checkout/internal/cart"
	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/orchestrator"
	"github.com/032-extremist/redcart-checkout/internal/repository"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
	"github.com/032-extremist/redcart-checkout/pkg/middleware"
)

// DefaultLockTTL bounds how long one action may hold a caller's lock.
const DefaultLockTTL = 75 * time.Second

// actionTimeout is how long an action may run under a lock of lockTTL. The
// last fifth of the lock is kept for saving the result.
func actionTimeout(lockTTL time.Duration) time.Duration {
	return lockTTL - lockTTL/5
}

// OrderService is the order side of the commerce API.
type OrderService interface {
	orchestrator.OrderPlacer
	List(ctx context.Context) ([]domain.Order, error)
	Status(ctx context.Context, orderID string) (*domain.OrderStatusView, error)
}

// CheckoutService implements the checkout actions on behalf of the caller
// whose credentials are in the context.
type CheckoutService struct {
	store    repository.StateRepository
	orders   OrderService
	payments orchestrator.PaymentGateway
	cart     cart.Source
	events   orchestrator.EventPublisher
	logger   *slog.Logger
	lockTTL  time.Duration
}

// NewCheckoutService creates a new checkout service. events may be nil.
func NewCheckoutService(
	store repository.StateRepository,
	orders OrderService,
	payments orchestrator.PaymentGateway,
	cartSource cart.Source,
	events orchestrator.EventPublisher,
	logger *slog.Logger,
	lockTTL time.Duration,
) *CheckoutService {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		store:    store,
		orders:   orders,
		payments: payments,
		cart:     cartSource,
		events:   events,
		logger:   logger,
		lockTTL:  lockTTL,
	}
}

// State returns the caller's current state without taking the lock.
func (s *CheckoutService) State(ctx context.Context) (*domain.OrchestrationState, error) {
	ctx, key, err := s.identify(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load checkout state: %w", err)
	}
	return state, nil
}

// Submit reads the caller's cart and submits it with form.
func (s *CheckoutService) Submit(ctx context.Context, form domain.CheckoutForm) (*domain.OrchestrationState, error) {
	return s.run(ctx, "submit", func(ctx context.Context, o *orchestrator.Orchestrator, view *cart.View) error {
		c, err := view.Load(ctx)
		if err != nil {
			return err
		}
		return o.SubmitCheckout(ctx, c, form)
	})
}

// RetryPush re-sends the payment prompt for the pending payment.
func (s *CheckoutService) RetryPush(ctx context.Context) (*domain.OrchestrationState, error) {
	return s.run(ctx, "retry_push", func(ctx context.Context, o *orchestrator.Orchestrator, _ *cart.View) error {
		return o.RetryPaymentPush(ctx)
	})
}

// CheckStatus polls the pending payment once.
func (s *CheckoutService) CheckStatus(ctx context.Context) (*domain.OrchestrationState, error) {
	return s.run(ctx, "check_status", func(ctx context.Context, o *orchestrator.Orchestrator, _ *cart.View) error {
		return o.CheckPaymentStatus(ctx)
	})
}

// Reset abandons the caller's checkout attempt.
func (s *CheckoutService) Reset(ctx context.Context) (*domain.OrchestrationState, error) {
	return s.run(ctx, "reset", func(_ context.Context, o *orchestrator.Orchestrator, _ *cart.View) error {
		return o.Reset()
	})
}

// Orders lists the caller's orders.
func (s *CheckoutService) Orders(ctx context.Context) ([]domain.Order, error) {
	ctx, _, err := s.identify(ctx)
	if err != nil {
		return nil, err
	}
	return s.orders.List(ctx)
}

// OrderStatus returns one order's status.
func (s *CheckoutService) OrderStatus(ctx context.Context, orderID string) (*domain.OrderStatusView, error) {
	ctx, _, err := s.identify(ctx)
	if err != nil {
		return nil, err
	}
	return s.orders.Status(ctx, orderID)
}

type action func(ctx context.Context, o *orchestrator.Orchestrator, view *cart.View) error

// run holds the caller's lock for the whole load, act, save cycle. The
// action must finish before the lock can expire, and the save only lands if
// nobody saved since the load. The returned state is the stored one, also
// when the action returned an error.
func (s *CheckoutService) run(ctx context.Context, name string, fn action) (*domain.OrchestrationState, error) {
	ctx, key, err := s.identify(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx, s.logger)

	token := uuid.NewString()
	ok, err := s.store.Acquire(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		log.InfoContext(ctx, "checkout action rejected, another is in flight", slog.String("action", name))
		return nil, orchestrator.ErrActionInFlight
	}
	defer func() {
		if err := s.store.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.ErrorContext(ctx, "failed to release checkout lock", slog.String("error", err.Error()))
		}
	}()

	prev, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load checkout state: %w", err)
	}

	opts := []orchestrator.Option{}
	if s.events != nil {
		opts = append(opts, orchestrator.WithEvents(s.events))
	}
	view := cart.NewView(s.cart, s.logger)
	orch := orchestrator.New(s.orders, s.payments, view, s.logger, opts...)
	if err := orch.Restore(prev); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, actionTimeout(s.lockTTL))
	actionErr := fn(actx, orch, view)
	cancel()

	next := orch.State()
	next.Version = prev.Version
	if errors.Is(actionErr, orchestrator.ErrInvalidTransition) || reflect.DeepEqual(next, prev) {
		return prev, actionErr
	}

	next.Version = prev.Version + 1
	// The action may have created an order; persist even if the caller left.
	if err := s.store.Save(context.WithoutCancel(ctx), key, next, prev.Version); err != nil {
		attrs := []any{
			slog.String("action", name),
			slog.String("phase", string(next.Phase)),
			slog.String("error", err.Error()),
		}
		if next.PendingPayment != nil {
			attrs = append(attrs, slog.String("order_id", next.PendingPayment.OrderID))
		}
		log.ErrorContext(ctx, "failed to save checkout state", attrs...)
		if errors.Is(err, repository.ErrStaleState) {
			return nil, orchestrator.ErrActionInFlight
		}
		return nil, fmt.Errorf("save checkout state: %w", err)
	}

	log.InfoContext(ctx, "checkout action completed",
		slog.String("action", name),
		slog.String("phase", string(next.Phase)),
		slog.Int64("version", next.Version),
	)
	return next, actionErr
}

// identify resolves the caller key and tags the context with it.
func (s *CheckoutService) identify(ctx context.Context) (context.Context, string, error) {
	key, err := CallerKey(middleware.CredentialsFromContext(ctx).Token)
	if err != nil {
		return ctx, "", err
	}
	return logger.WithCaller(ctx, key), key, nil
}
