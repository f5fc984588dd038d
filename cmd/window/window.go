package window

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarwindow/pvpoll/internal/api"
	"github.com/solarwindow/pvpoll/internal/app"
	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/phase"
)

// Command prints the twilight window and budget allocation of a day.
func Command() *cobra.Command {
	var (
		date   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show the twilight window and budget allocation of a day",
		Long: `Compute the civil twilight window of a day, reconciled from the ephemeris
and the configured sunrise source, and the per-phase split of the daily
query budget.

Examples:
  pvpoll window
  pvpoll window --date=2024-12-21 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()

			client := httpclient.New(&httpclient.Config{
				DefaultTimeout: settings.Sunrise.Timeout,
				UserAgent:      settings.Sunrise.UserAgent,
				Component:      "sunrise",
			})
			defer client.Close()

			src, err := app.BuildSources(settings, client, nil)
			if err != nil {
				return err
			}
			now := time.Now()
			day, err := app.ParseDate(date, src.Location, now)
			if err != nil {
				return err
			}

			w, err := src.Model.ComputeWindow(cmd.Context(), day)
			if err != nil {
				return err
			}
			resp := api.WindowResponse{
				Date:       day.Format(time.DateOnly),
				Window:     w,
				Allocation: budget.Allocate(w, settings.Budget.Daily),
			}
			if today, _ := app.ParseDate("", src.Location, now); today.Equal(day) {
				resp.Phase = phase.Classify(now, w).String()
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printWindow(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to compute, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func printWindow(out io.Writer, resp api.WindowResponse) {
	w := resp.Window
	fmt.Fprintf(out, "Window for %s (%s)\n", resp.Date, w.Date.Location())
	if resp.Phase != "" {
		fmt.Fprintf(out, "  current phase  %s\n", resp.Phase)
	}
	fmt.Fprintf(out, "  civil dawn     %s  [%s]\n", w.CivilDawn.Format(time.TimeOnly), w.Sources.CivilDawn)
	fmt.Fprintf(out, "  sunrise        %s  [%s]\n", w.Sunrise.Format(time.TimeOnly), w.Sources.Sunrise)
	fmt.Fprintf(out, "  sunset         %s  [%s]\n", w.Sunset.Format(time.TimeOnly), w.Sources.Sunset)
	fmt.Fprintf(out, "  civil dusk     %s  [%s]\n", w.CivilDusk.Format(time.TimeOnly), w.Sources.CivilDusk)
	if w.Degraded {
		fmt.Fprintln(out, "  degraded: at least one boundary is a fallback")
	}

	a := resp.Allocation
	fmt.Fprintf(out, "\nBudget %d queries, %d allocated\n", a.Budget, a.Total())
	for _, p := range []budget.PhaseInterval{a.DawnRamp, a.Core, a.DuskRamp} {
		note := ""
		if p.Fallback {
			note = "  (fallback)"
		}
		fmt.Fprintf(out, "  %-10s %6.1f min  %4d queries  every %s%s\n",
			p.Phase, p.Minutes, p.Queries, p.Interval.Round(time.Second), note)
	}
}
