package domain

import "time"

// Phase is the orchestration phase of one checkout attempt.
type Phase string

const (
	PhaseIdle                  Phase = "Idle"
	PhaseSubmitting            Phase = "Submitting"
	PhaseAwaitingPaymentAction Phase = "AwaitingPaymentAction"
	PhasePolling               Phase = "Polling"
	PhaseResolved              Phase = "Resolved"
)

// PendingPayment identifies a mobile-money order whose payment has not been
// confirmed yet.
type PendingPayment struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

// Result is the latest order and payment projection shown to the caller.
type Result struct {
	OrderID        string        `json:"orderId"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	TransactionRef string        `json:"transactionRef,omitempty"`
}

// OrchestrationState is everything one checkout attempt remembers between
// actions. Form keeps the submitted form so a retried push reuses its phone.
type OrchestrationState struct {
	Phase          Phase           `json:"phase"`
	PendingPayment *PendingPayment `json:"pendingPayment,omitempty"`
	LastResult     *Result         `json:"lastResult,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	InfoMessage    string          `json:"infoMessage,omitempty"`
	Form           *CheckoutForm   `json:"form,omitempty"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewState returns an Idle state.
func NewState() *OrchestrationState {
	return &OrchestrationState{Phase: PhaseIdle}
}

// Clone returns a deep copy of s.
func (s *OrchestrationState) Clone() *OrchestrationState {
	if s == nil {
		return NewState()
	}
	c := *s
	if s.PendingPayment != nil {
		p := *s.PendingPayment
		c.PendingPayment = &p
	}
	if s.LastResult != nil {
		r := *s.LastResult
		c.LastResult = &r
	}
	if s.Form != nil {
		f := *s.Form
		c.Form = &f
	}
	return &c
}

// IsTerminal reports whether the flow has finished: resolved with no payment
// left to confirm.
func (s *OrchestrationState) IsTerminal() bool {
	return s.Phase == PhaseResolved && s.PendingPayment == nil
}

// InFlight reports whether the state was persisted mid-action.
func (s *OrchestrationState) InFlight() bool {
	return s.Phase == PhaseSubmitting || s.Phase == PhasePolling
}
