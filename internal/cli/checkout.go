package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/032-extremist/redcart-checkout/internal/domain"
)

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current checkout state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAction(cmd, func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error) {
				return svc.State(ctx)
			})
		},
	}
}

// formFlags binds the checkout form to flags.
func formFlags(cmd *cobra.Command, form *domain.CheckoutForm) {
	f := cmd.Flags()
	f.StringVar(&form.ShippingName, "name", "", "Recipient name")
	f.StringVar(&form.ShippingPhone, "phone", "", "Recipient phone; also receives the mobile-money prompt")
	f.StringVar(&form.ShippingEmail, "email", "", "Recipient email")
	f.StringVar(&form.ShippingStreet, "street", "", "Street address")
	f.StringVar(&form.ShippingCity, "city", "", "City")
	f.StringVar(&form.ShippingCountry, "country", "", "Country")
	f.StringVar(&form.PayerName, "payer", "", "Payer name, required for MOBILE_MONEY")
	f.StringVar((*string)(&form.PaymentMethod), "method", string(domain.PaymentMethodMobileMoney), "Payment method: MOBILE_MONEY or CARD")
}

func newSubmitCmd(opts *options) *cobra.Command {
	var form domain.CheckoutForm
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Place an order for the current cart",
		Long: `Place an order for everything in the cart. For MOBILE_MONEY a payment
prompt is sent to --phone right after the order is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form.PaymentMethod = domain.PaymentMethod(strings.ToUpper(string(form.PaymentMethod)))
			return opts.runAction(cmd, func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error) {
				return svc.Submit(ctx, form)
			})
		},
	}
	formFlags(cmd, &form)
	return cmd
}

func newRetryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-send the mobile-money payment prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAction(cmd, func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error) {
				return svc.RetryPush(ctx)
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the pending payment once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAction(cmd, func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error) {
				return svc.CheckStatus(ctx)
			})
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Abandon the current checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAction(cmd, func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error) {
				return svc.Reset(ctx)
			})
		},
	}
}

func newCheckoutCmd(opts *options) *cobra.Command {
	var form domain.CheckoutForm
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Submit, then retry or check the payment interactively",
		Long: `Submit the cart, then keep the checkout open: enter "s" to check the
payment status, "r" to re-send the prompt, or "q" to leave. The session ends
on its own once the order is resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form.PaymentMethod = domain.PaymentMethod(strings.ToUpper(string(form.PaymentMethod)))
			return opts.withRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				return opts.interactive(ctx, cmd, rt.Service, form)
			})
		},
	}
	formFlags(cmd, &form)
	return cmd
}

// interactive runs one submit and then reads commands until the checkout is
// terminal, the input ends, or the caller quits.
func (o *options) interactive(ctx context.Context, cmd *cobra.Command, svc CheckoutService, form domain.CheckoutForm) error {
	out := cmd.OutOrStdout()

	state, err := svc.Submit(ctx, form)
	if err != nil {
		return err
	}
	if err := o.print(out, state); err != nil {
		return err
	}

	scanner := bufio.NewScanner(o.in)
	for state.PendingPayment != nil {
		fmt.Fprint(out, "[s]tatus, [r]etry prompt, [q]uit > ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "s", "status":
			state, err = svc.CheckStatus(ctx)
		case "r", "retry":
			state, err = svc.RetryPush(ctx)
		case "q", "quit":
			return nil
		case "":
			continue
		default:
			fmt.Fprintln(out, "unknown command")
			continue
		}
		if err != nil {
			return err
		}
		if err := o.print(out, state); err != nil {
			return err
		}
	}
	return nil
}

type action func(ctx context.Context, svc CheckoutService) (*domain.OrchestrationState, error)

// runAction runs fn and prints the resulting state.
func (o *options) runAction(cmd *cobra.Command, fn action) error {
	return o.withRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
		state, err := fn(ctx, rt.Service)
		if err != nil {
			return err
		}
		return o.print(cmd.OutOrStdout(), state)
	})
}
