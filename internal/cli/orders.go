package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/032-extremist/redcart-checkout/internal/app"
)

func newOrdersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				orders, err := rt.Service.Orders(ctx)
				if err != nil {
					return err
				}
				return opts.printOrders(cmd.OutOrStdout(), orders)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status [order-id]",
		Short: "Show one order's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				view, err := rt.Service.OrderStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.printOrderStatus(cmd.OutOrStdout(), view)
			})
		},
	})
	return cmd
}

func newPurgeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired checkout states from the postgres store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				n, err := rt.Purge(ctx)
				if errors.Is(err, app.ErrPurgeUnsupported) {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing to purge: the %s store expires states itself.\n", opts.cfg.StateStore)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired checkout states.\n", n)
				return nil
			})
		},
	}
}
