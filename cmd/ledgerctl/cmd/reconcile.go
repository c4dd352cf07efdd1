package cmd

import (
	"github.com/spf13/cobra"

	"recettes/internal/services"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every stored balance of an owner and repair drift",
		Long: `reconcile recomputes the balance of every income source from its
initial amount, expenses and transfers, and overwrites stored balances
that drifted by more than one cent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireOwner(); err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(ledger *services.Ledger) error {
				sources, drifts, err := ledger.Reconciler.ReconcileAll(cmd.Context(), opts.owner)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, d := range drifts {
					printf(out, "source %d: stored %s, authoritative %s (delta %s)\n",
						d.SourceID, d.Stored, d.Authoritative, d.Delta())
				}
				printf(out, "%d sources checked, %d corrected\n", len(sources), len(drifts))
				return nil
			})
		},
	}
}
