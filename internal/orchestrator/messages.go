package orchestrator

import (
	"fmt"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
)

const (
	msgCheckoutFailed  = "Checkout failed. Verify details and try again."
	msgPushSent        = "Payment prompt sent to your phone. Complete it, then check payment status."
	msgPushResent      = "Payment prompt re-sent. Complete payment on your phone."
	msgPushFailDetail  = "retry the payment below."
	msgRetryFailDetail = "confirm the phone number and try again."
	msgStatusFailed    = "Unable to fetch payment status."
	msgPaymentSuccess  = "Payment confirmed successfully."
	msgPaymentFailed   = "Payment failed. Retry the payment prompt to attempt payment again."
	msgPaymentPending  = "Payment is still pending. Complete the prompt on your phone, then check again."
)

// pushFailedMessage tells the caller the order exists even though the
// prompt did not go out.
func pushFailedMessage(orderID string, err error, fallback string) string {
	return fmt.Sprintf("Order %s was created, but the payment prompt failed: %s", orderID, apperrors.UserMessage(err, fallback))
}
