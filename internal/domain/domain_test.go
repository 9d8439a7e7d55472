package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_IsEmpty(t *testing.T) {
	var nilCart *Cart
	assert.True(t, nilCart.IsEmpty())
	assert.True(t, (&Cart{}).IsEmpty())
	assert.False(t, (&Cart{Items: []CartItem{{ID: "i1", Quantity: 1}}}).IsEmpty())
}

func TestCart_CalculateTotal(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{Quantity: 1, Subtotal: decimal.RequireFromString("19.99")},
		{Quantity: 3, Subtotal: decimal.RequireFromString("29.99")},
	}}

	assert.Equal(t, "49.98", cart.CalculateTotal().StringFixed(2))
	assert.Equal(t, 4, cart.ItemCount())

	var nilCart *Cart
	assert.True(t, nilCart.CalculateTotal().IsZero())
}

func TestCart_DecodesNumericMoney(t *testing.T) {
	var cart Cart
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","items":[{"id":"i1","quantity":2,"subtotal":49.98,"product":{"id":"p1","slug":"mug","name":"Mug","price":24.99}}],"subtotal":49.98,"total":49.98}`), &cart))

	assert.Equal(t, "49.98", cart.Total.StringFixed(2))
	assert.Equal(t, "24.99", cart.Items[0].Product.Price.StringFixed(2))
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.True(t, PaymentStatusSuccess.IsTerminal())
	assert.True(t, PaymentStatusFailed.IsTerminal())
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatus("PROCESSING").IsTerminal())
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentMethodCard.Valid())
	assert.True(t, PaymentMethodMobileMoney.Valid())
	assert.False(t, PaymentMethod("MPESA").Valid())
}

func TestCheckoutPayload_CardOmitsPayerName(t *testing.T) {
	raw, err := json.Marshal(CheckoutPayload{PaymentMethod: PaymentMethodCard, ShippingName: "Ada"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "payerName")
}

func TestOrchestrationState_Clone(t *testing.T) {
	s := &OrchestrationState{
		Phase:          PhaseAwaitingPaymentAction,
		PendingPayment: &PendingPayment{OrderID: "ORD2", PaymentID: "PAY2"},
		LastResult:     &Result{OrderID: "ORD2", Status: OrderStatusPendingPayment},
		Form:           &CheckoutForm{ShippingPhone: "+254700000000"},
	}

	c := s.Clone()
	c.PendingPayment.PaymentID = "changed"
	c.LastResult.Status = OrderStatusConfirmed
	c.Form.ShippingPhone = "changed"

	assert.Equal(t, "PAY2", s.PendingPayment.PaymentID)
	assert.Equal(t, OrderStatusPendingPayment, s.LastResult.Status)
	assert.Equal(t, "+254700000000", s.Form.ShippingPhone)

	var nilState *OrchestrationState
	assert.Equal(t, PhaseIdle, nilState.Clone().Phase)
}

func TestOrchestrationState_IsTerminal(t *testing.T) {
	assert.False(t, NewState().IsTerminal())
	assert.True(t, (&OrchestrationState{Phase: PhaseResolved}).IsTerminal())
	assert.False(t, (&OrchestrationState{
		Phase:          PhaseResolved,
		PendingPayment: &PendingPayment{OrderID: "o", PaymentID: "p"},
	}).IsTerminal())
}
