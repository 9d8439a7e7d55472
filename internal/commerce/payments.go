package commerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/validator"
)

// PaymentsClient drives mobile-money payments.
type PaymentsClient struct {
	c *Client
}

// InitiatePush asks the provider to prompt the payer's phone. The response
// may omit the order part, the payment part, or both.
func (p *PaymentsClient) InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	var out domain.PushResult
	if err := p.c.call(ctx, "initiate_push", http.MethodPost, "/payments/mobile-money/push", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the provider's view of a payment.
func (p *PaymentsClient) Status(ctx context.Context, paymentID string) (*domain.PaymentStatusResult, error) {
	if paymentID == "" {
		return nil, apperrors.InvalidInput("payment id is required")
	}
	var out domain.PaymentStatusResult
	path := "/payments/mobile-money/" + url.PathEscape(paymentID) + "/status"
	if err := p.c.call(ctx, "payment_status", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
