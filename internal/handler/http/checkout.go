package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/service"
	"github.com/032-extremist/redcart-checkout/pkg/httputil"
	"github.com/032-extremist/redcart-checkout/pkg/pagination"
)

// maxBodyBytes caps the checkout form body.
const maxBodyBytes = 64 << 10

// CheckoutHandler handles HTTP requests for checkout and order endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Response DTOs ---

// StateResponse is the caller-facing view of the orchestration state. The
// submitted form stays server side.
type StateResponse struct {
	Phase          domain.Phase           `json:"phase"`
	PendingPayment *domain.PendingPayment `json:"pendingPayment,omitempty"`
	LastResult     *domain.Result         `json:"lastResult,omitempty"`
	ErrorMessage   string                 `json:"errorMessage,omitempty"`
	InfoMessage    string                 `json:"infoMessage,omitempty"`
	Terminal       bool                   `json:"terminal"`
	Actions        AvailableActions       `json:"actions"`
	Version        int64                  `json:"version"`
	UpdatedAt      *time.Time             `json:"updatedAt,omitempty"`
}

// AvailableActions tells the storefront which buttons to enable.
type AvailableActions struct {
	Submit      bool `json:"submit"`
	RetryPush   bool `json:"retryPush"`
	CheckStatus bool `json:"checkStatus"`
}

func toStateResponse(s *domain.OrchestrationState) StateResponse {
	resp := StateResponse{
		Phase:          s.Phase,
		PendingPayment: s.PendingPayment,
		LastResult:     s.LastResult,
		ErrorMessage:   s.ErrorMessage,
		InfoMessage:    s.InfoMessage,
		Terminal:       s.IsTerminal(),
		Version:        s.Version,
		Actions: AvailableActions{
			Submit:      s.Phase == domain.PhaseIdle || s.Phase == domain.PhaseResolved,
			RetryPush:   s.PendingPayment != nil && s.Form != nil && s.Form.ShippingPhone != "",
			CheckStatus: s.PendingPayment != nil,
		},
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// --- Handlers ---

// GetState handles GET /api/v1/checkout
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toStateResponse(state))
}

// Submit handles POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var form domain.CheckoutForm
	if !httputil.DecodeJSON(w, r, &form) {
		return
	}

	state, err := h.service.Submit(r.Context(), form)
	h.writeState(w, r, state, err)
}

// RetryPush handles POST /api/v1/checkout/payment/push
func (h *CheckoutHandler) RetryPush(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.RetryPush(r.Context())
	h.writeState(w, r, state, err)
}

// CheckStatus handles POST /api/v1/checkout/payment/status
func (h *CheckoutHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.CheckStatus(r.Context())
	h.writeState(w, r, state, err)
}

// Reset handles DELETE /api/v1/checkout
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Reset(r.Context())
	h.writeState(w, r, state, err)
}

// ListOrders handles GET /api/v1/orders?page=&per_page=
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.Slice(orders, pagination.FromRequest(r)))
}

// GetOrderStatus handles GET /api/v1/orders/{id}/status
func (h *CheckoutHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.OrderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// writeState reports action errors (validation, conflicts) as errors. Remote
// failures are not errors here: they are already in the state's message.
func (h *CheckoutHandler) writeState(w http.ResponseWriter, r *http.Request, state *domain.OrchestrationState, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toStateResponse(state))
}
