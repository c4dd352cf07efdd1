package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recettes/internal/services"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List income sources with their reconciled balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireOwner(); err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(ledger *services.Ledger) error {
				sources, err := ledger.Income.ListIncomeSources(cmd.Context(), opts.owner)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				printf(tw, "ID\tLABEL\tSTATUS\tINITIAL\tAVAILABLE\n")
				for _, s := range sources {
					printf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Label, s.Status, s.InitialAmount, s.AvailableBalance)
				}
				return tw.Flush()
			})
		},
	}
}
