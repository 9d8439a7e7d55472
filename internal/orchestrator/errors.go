package orchestrator

import apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"

var (
	// ErrActionInFlight is returned when an action starts while another is
	// still running on the same checkout.
	ErrActionInFlight = apperrors.Conflict("ACTION_IN_FLIGHT", "Another checkout action is still running.")

	// ErrInvalidTransition is returned when an action is not available in
	// the current phase, e.g. a status check with no pending payment.
	ErrInvalidTransition = apperrors.Conflict("INVALID_TRANSITION", "That action is not available at this step of checkout.")
)
