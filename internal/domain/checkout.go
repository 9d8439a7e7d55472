package domain

import "github.com/shopspring/decimal"

// CheckoutForm is the shipping and payment input collected from the caller.
type CheckoutForm struct {
	ShippingName    string        `json:"shippingName" validate:"required"`
	ShippingPhone   string        `json:"shippingPhone" validate:"required"`
	ShippingEmail   string        `json:"shippingEmail" validate:"required"`
	ShippingStreet  string        `json:"shippingStreet" validate:"required"`
	ShippingCity    string        `json:"shippingCity" validate:"required"`
	ShippingCountry string        `json:"shippingCountry" validate:"required"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" validate:"required,oneof=MOBILE_MONEY CARD"`
	PayerName       string        `json:"payerName,omitempty"`
}

// CheckoutPayload is the body of POST /orders/checkout. PayerName is nil,
// and therefore absent from the JSON, for card payments.
type CheckoutPayload struct {
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	ShippingName    string        `json:"shippingName"`
	ShippingPhone   string        `json:"shippingPhone"`
	ShippingEmail   string        `json:"shippingEmail"`
	ShippingStreet  string        `json:"shippingStreet"`
	ShippingCity    string        `json:"shippingCity"`
	ShippingCountry string        `json:"shippingCountry"`
	PayerName       *string       `json:"payerName,omitempty"`
}

// CheckoutResult is the order placement response.
type CheckoutResult struct {
	OrderID    string          `json:"orderId"`
	Status     OrderStatus     `json:"status"`
	Payment    Payment         `json:"payment"`
	Total      decimal.Decimal `json:"total"`
	NextAction string          `json:"nextAction"`
}

// PushRequest asks the provider to prompt the payer's phone.
type PushRequest struct {
	PaymentID   string `json:"paymentId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

// OrderRef carries an optional order status inside payment responses.
type OrderRef struct {
	Status OrderStatus `json:"status"`
}

// PaymentRef carries an optional payment status inside payment responses.
type PaymentRef struct {
	Status PaymentStatus `json:"status"`
}

// PushResult is the payment push response. Either part may be absent.
type PushResult struct {
	Order   *OrderRef   `json:"order,omitempty"`
	Payment *PaymentRef `json:"payment,omitempty"`
}

// PaymentStatusResult is the payment status response.
type PaymentStatusResult struct {
	Status         PaymentStatus `json:"status"`
	TransactionRef string        `json:"transactionRef,omitempty"`
	Order          *OrderRef     `json:"order,omitempty"`
}
