package commerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
)

// OrdersClient places orders and reads order history.
type OrdersClient struct {
	c *Client
}

// PlaceOrder submits a checkout. The server creates exactly one order and
// one payment; the request is never retried.
func (o *OrdersClient) PlaceOrder(ctx context.Context, payload *domain.CheckoutPayload) (*domain.CheckoutResult, error) {
	var out domain.CheckoutResult
	if err := o.c.call(ctx, "place_order", http.MethodPost, "/orders/checkout", payload, &out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		return nil, apperrors.Upstream(http.StatusBadGateway, "", "The store returned an order without an id.")
	}
	return &out, nil
}

// List returns the caller's orders, newest first as the server sends them.
func (o *OrdersClient) List(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := o.c.call(ctx, "list_orders", http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the current status of one order and its payment.
func (o *OrdersClient) Status(ctx context.Context, orderID string) (*domain.OrderStatusView, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	var out domain.OrderStatusView
	if err := o.c.call(ctx, "order_status", http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
