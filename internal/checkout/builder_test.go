package checkout

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/validator"
)

func sampleCart() *domain.Cart {
	return &domain.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{
			{ID: "line-1", Quantity: 2, Subtotal: decimal.RequireFromString("49.98")},
		},
		Subtotal: decimal.RequireFromString("49.98"),
		Total:    decimal.RequireFromString("49.98"),
	}
}

func sampleForm(method domain.PaymentMethod) domain.CheckoutForm {
	return domain.CheckoutForm{
		ShippingName:    "Ada Lovelace",
		ShippingPhone:   "+254700000001",
		ShippingEmail:   "ada@example.com",
		ShippingStreet:  " 12 Analytical Way ",
		ShippingCity:    "Nairobi",
		ShippingCountry: "Kenya",
		PaymentMethod:   method,
		PayerName:       "  Ada  ",
	}
}

func TestBuild_Card_OmitsPayerName(t *testing.T) {
	payload, err := Build(sampleCart(), sampleForm(domain.PaymentMethodCard))
	require.NoError(t, err)

	assert.Nil(t, payload.PayerName)
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "payerName")
}

func TestBuild_MobileMoney_TrimsPayerOnly(t *testing.T) {
	payload, err := Build(sampleCart(), sampleForm(domain.PaymentMethodMobileMoney))
	require.NoError(t, err)

	require.NotNil(t, payload.PayerName)
	assert.Equal(t, "Ada", *payload.PayerName)
	assert.Equal(t, " 12 Analytical Way ", payload.ShippingStreet)
	assert.Equal(t, domain.PaymentMethodMobileMoney, payload.PaymentMethod)
}

func TestBuild_MobileMoney_BlankPayer(t *testing.T) {
	form := sampleForm(domain.PaymentMethodMobileMoney)
	form.PayerName = "   "

	payload, err := Build(sampleCart(), form)
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, ErrPayerNameRequired)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBuild_EmptyCart(t *testing.T) {
	for _, cart := range []*domain.Cart{nil, {ID: "empty"}} {
		_, err := Build(cart, sampleForm(domain.PaymentMethodCard))
		assert.ErrorIs(t, err, ErrEmptyCart)
		assert.Equal(t, "Nothing to check out: your cart is empty.", apperrors.UserMessage(err, ""))
	}
}

func TestBuild_MissingShippingField(t *testing.T) {
	form := sampleForm(domain.PaymentMethodCard)
	form.ShippingCity = ""

	_, err := Build(sampleCart(), form)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_FAILED", appErr.Code)
	assert.Contains(t, appErr.Message, "shippingCity is required")

	var verr *validator.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields()["shippingCity"])
}

func TestBuild_UnknownPaymentMethod(t *testing.T) {
	_, err := Build(sampleCart(), sampleForm("MPESA"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "paymentMethod must be one of")
}
