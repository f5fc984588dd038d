package ledger

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/datastore"
)

// Command lists the persisted daily budget ledgers.
func Command() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List the persisted daily query ledgers",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()

			store, err := datastore.Open(settings.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			Print(cmd.OutOrStdout(), rows, settings.Budget.Daily)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 14, "Number of days to list, newest first")

	return cmd
}

// Print renders ledger rows against the daily budget
func Print(out io.Writer, rows []datastore.BudgetLedger, daily int) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No ledgers recorded")
		return
	}
	fmt.Fprintf(out, "%-10s  %6s  %8s  %6s  %s\n", "DAY", "ISSUED", "ATTEMPTS", "USED", "UPDATED")
	for _, r := range rows {
		used := 0.0
		if daily > 0 {
			used = 100 * float64(r.Issued) / float64(daily)
		}
		fmt.Fprintf(out, "%-10s  %6d  %8d  %5.1f%%  %s\n",
			r.Day, r.Issued, r.Attempts, used, r.UpdatedAt.Local().Format(time.DateTime))
	}
}
