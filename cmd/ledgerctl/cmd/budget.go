package cmd

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"recettes/internal/services"
)

func newBudgetCmd(opts *rootOptions) *cobra.Command {
	now := time.Now()
	var year, month int

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show the envelope overview of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireOwner(); err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(ledger *services.Ledger) error {
				ov, err := ledger.Envelope.MonthOverviewFor(cmd.Context(), opts.owner, year, month)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printf(out, "%04d-%02d revenue %s\n\n", ov.Month.Year, ov.Month.Month, ov.Month.Revenue)

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				printf(tw, "ID\tNAME\tKIND\tSTATUS\tBUDGETED\tSPENT\tREMAINING\t\n")
				for _, v := range ov.LineItems {
					flag := ""
					if v.OverBudget {
						flag = "over budget"
					}
					printf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						v.ID, v.Name, v.Kind, v.Status, v.Budgeted, v.Spent, v.Remaining, flag)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				printf(out, "\nbudgeted %s, spent %s, unallocated %s, disposable %s\n",
					ov.TotalBudgeted, ov.TotalSpent, ov.Unallocated, ov.DisposableAfterRealSpend)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", now.Year(), "budget year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "budget month (1-12)")
	return cmd
}
