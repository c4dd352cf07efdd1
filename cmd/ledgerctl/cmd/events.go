package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"recettes/internal/amqp"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	events := &cobra.Command{
		Use:   "events",
		Short: "Work with the ledger event queue",
	}

	events.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print ledger events from the queue as JSON lines",
		Long: `tail consumes AMQP_QUEUE and prints every ledger event (drift
corrections, receipt sync requests, transfer partial failures) until
interrupted. Consumed events are acknowledged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(opts.cfg.AMQPURL, opts.cfg.AMQPExchange, opts.cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.ConsumeEvents(cmd.Context(), func(ev *amqp.LedgerEvent) error {
				if opts.owner != "" && ev.OwnerID != opts.owner {
					return nil
				}
				raw, err := ev.ToJSON()
				if err != nil {
					return err
				}
				printf(out, "%s\n", raw)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})

	return events
}
