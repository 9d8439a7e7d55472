package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/032-extremist/redcart-checkout/internal/event"
	pkgkafka "github.com/032-extremist/redcart-checkout/pkg/kafka"
)

// dedupWindow is how long tail remembers event IDs it already printed.
const dedupWindow = 10 * time.Minute

func newEventsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect checkout and payment events",
	}

	var group string
	var deadLetter bool
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print checkout and payment events as they are published",
		Long: `Join a consumer group on every checkout and payment topic and print each
event once. Undecodable messages go to the dead-letter topic with --dlq.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(opts.cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is not set")
			}
			brokers := opts.cfg.KafkaBrokers

			handler := pkgkafka.IdempotentHandler(
				pkgkafka.NewMemoryIdempotencyStore(dedupWindow),
				eventPrinter(cmd.OutOrStdout(), opts.jsonOut),
				opts.logger,
			)
			consumer := pkgkafka.NewConsumer(
				pkgkafka.DefaultConsumerConfig(brokers, group, event.Topics()...),
				handler,
				opts.logger,
			)
			if deadLetter {
				dlq := pkgkafka.NewDLQProducer(brokers, opts.logger)
				defer func() { _ = dlq.Close() }()
				consumer = consumer.WithDeadLetter(dlq)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Tailing %d topics as group %q. Ctrl-C to stop.\n", len(event.Topics()), group)
			return consumer.Start(cmd.Context())
		},
	}
	tail.Flags().StringVar(&group, "group", "redcart-cli-tail", "Consumer group ID")
	tail.Flags().BoolVar(&deadLetter, "dlq", false, "Forward undecodable messages to the dead-letter topic")

	cmd.AddCommand(tail)
	return cmd
}

// eventPrinter writes one line per event, or the raw envelope with asJSON.
func eventPrinter(w io.Writer, asJSON bool) pkgkafka.Handler {
	var mu sync.Mutex
	return func(_ context.Context, e *pkgkafka.Event) error {
		mu.Lock()
		defer mu.Unlock()

		if asJSON {
			return writeJSON(w, e)
		}
		_, err := fmt.Fprintf(w, "%s  %-24s %-14s %s\n",
			e.OccurredAt.Local().Format(time.TimeOnly), e.EventType, e.AggregateID, string(e.Data))
		return err
	}
}
