package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/032-extremist/redcart-checkout/internal/domain"
)

// print writes state as text, or as indented JSON with --json.
func (o *options) print(w io.Writer, state *domain.OrchestrationState) error {
	if o.jsonOut {
		return writeJSON(w, state)
	}

	fmt.Fprintf(w, "Phase:    %s\n", state.Phase)
	if r := state.LastResult; r != nil {
		fmt.Fprintf(w, "Order:    %s (%s)\n", r.OrderID, r.Status)
		fmt.Fprintf(w, "Payment:  %s\n", r.PaymentStatus)
		if r.TransactionRef != "" {
			fmt.Fprintf(w, "Ref:      %s\n", r.TransactionRef)
		}
	}
	if p := state.PendingPayment; p != nil {
		fmt.Fprintf(w, "Pending:  payment %s for order %s\n", p.PaymentID, p.OrderID)
	}
	if state.InfoMessage != "" {
		fmt.Fprintf(w, "Info:     %s\n", state.InfoMessage)
	}
	if state.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", state.ErrorMessage)
	}
	return nil
}

func (o *options) printOrders(w io.Writer, orders []domain.Order) error {
	if o.jsonOut {
		if orders == nil {
			orders = []domain.Order{}
		}
		return writeJSON(w, orders)
	}
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tMETHOD\tTOTAL\tPLACED")
	for _, ord := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ord.ID, ord.Status, ord.PaymentMethod, ord.Total.StringFixed(2),
			ord.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (o *options) printOrderStatus(w io.Writer, view *domain.OrderStatusView) error {
	if o.jsonOut {
		return writeJSON(w, view)
	}
	fmt.Fprintf(w, "Order:    %s (%s)\n", view.ID, view.Status)
	if p := view.Payment; p != nil {
		fmt.Fprintf(w, "Payment:  %s via %s, %s\n", p.Status, p.Provider, p.Amount.StringFixed(2))
		if p.TransactionRef != "" {
			fmt.Fprintf(w, "Ref:      %s\n", p.TransactionRef)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
