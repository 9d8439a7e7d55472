// Package checkout turns a cart and a checkout form into the payload the
// order service accepts.
package checkout

import (
	"fmt"
	"strings"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/validator"
)

var (
	// ErrEmptyCart rejects a checkout with nothing in the cart.
	ErrEmptyCart = apperrors.ValidationFailed("Nothing to check out: your cart is empty.")

	// ErrPayerNameRequired rejects a mobile-money checkout without a payer.
	ErrPayerNameRequired = apperrors.ValidationFailed("Payer name is required for mobile money payments.")
)

// Build validates cart and form and assembles the order placement payload.
// Shipping fields are copied verbatim. It has no side effects.
func Build(cart *domain.Cart, form domain.CheckoutForm) (*domain.CheckoutPayload, error) {
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if err := validator.Validate(form); err != nil {
		return nil, &apperrors.AppError{
			Code:    ErrEmptyCart.Code,
			Message: formMessage(err),
			Status:  ErrEmptyCart.Status,
			Err:     fmt.Errorf("%w: %w", apperrors.ErrValidation, err),
		}
	}

	payload := &domain.CheckoutPayload{
		PaymentMethod:   form.PaymentMethod,
		ShippingName:    form.ShippingName,
		ShippingPhone:   form.ShippingPhone,
		ShippingEmail:   form.ShippingEmail,
		ShippingStreet:  form.ShippingStreet,
		ShippingCity:    form.ShippingCity,
		ShippingCountry: form.ShippingCountry,
	}

	switch form.PaymentMethod {
	case domain.PaymentMethodMobileMoney:
		payer := strings.TrimSpace(form.PayerName)
		if payer == "" {
			return nil, ErrPayerNameRequired
		}
		payload.PayerName = &payer
	case domain.PaymentMethodCard:
		// payerName must be absent, not empty.
	default:
		return nil, apperrors.ValidationFailed(fmt.Sprintf("Unsupported payment method %q.", form.PaymentMethod))
	}

	return payload, nil
}

func formMessage(err error) string {
	if verr, ok := err.(*validator.ValidationError); ok {
		return "Check the checkout form: " + verr.Error() + "."
	}
	return "Check the checkout form and try again."
}
