package astro

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarwindow/pvpoll/internal/app"
	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/ephemeris"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/sunrise"
)

// Report is the astronomical summary of one day
type Report struct {
	Date          time.Time
	SolarNoon     *ephemeris.Sample
	CivilDawn     time.Time
	CivilDusk     time.Time
	TwilightError error
	MaxSun        float64
	MaxMoon       float64
	Moon          ephemeris.MoonPhase
	Moonrise      time.Time
	Moonset       time.Time
	MoonError     error // moonrise and moonset are best effort
}

// Command prints solar and lunar data of a day.
func Command() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "astro",
		Short: "Show solar noon, twilight, elevations and moon data of a day",
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
			day, err := app.ParseDate(date, src.Location, time.Now())
			if err != nil {
				return err
			}

			report := Compute(cmd.Context(), src.Calculator, src.MetNo, day)
			Print(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to report, YYYY-MM-DD (default: today)")

	return cmd
}

// Compute gathers the report of day. metno may be nil, in which case
// moonrise and moonset are omitted.
func Compute(ctx context.Context, calc *ephemeris.Calculator, metno *sunrise.MetNo, day time.Time) Report {
	r := Report{
		Date:    day,
		MaxSun:  calc.MaxElevation(ephemeris.Sun, day),
		MaxMoon: calc.MaxElevation(ephemeris.Moon, day),
		Moon:    calc.MoonPhase(day.Add(12 * time.Hour)),
	}
	if noon, err := calc.SolarNoon(day); err == nil {
		r.SolarNoon = &noon
	}
	r.CivilDawn, r.CivilDusk, r.TwilightError = calc.CivilTwilight(day)

	if metno != nil {
		events, err := metno.MoonriseMoonset(ctx, day)
		r.Moonrise, r.Moonset, r.MoonError = events.Rise, events.Set, err
	}
	return r
}

// Print renders r for a terminal
func Print(out io.Writer, r Report) {
	fmt.Fprintf(out, "Astronomy for %s (%s)\n", r.Date.Format(time.DateOnly), r.Date.Location())

	if r.SolarNoon != nil {
		fmt.Fprintf(out, "  solar noon      %s  %.2f°\n", r.SolarNoon.Time.Format(time.TimeOnly), r.SolarNoon.Elevation)
	} else {
		fmt.Fprintln(out, "  solar noon      unavailable")
	}
	if r.TwilightError != nil {
		fmt.Fprintf(out, "  civil twilight  none (%v)\n", r.TwilightError)
	} else {
		fmt.Fprintf(out, "  civil dawn      %s\n", r.CivilDawn.Format(time.TimeOnly))
		fmt.Fprintf(out, "  civil dusk      %s\n", r.CivilDusk.Format(time.TimeOnly))
	}
	fmt.Fprintf(out, "  max sun         %.2f°\n", r.MaxSun)
	fmt.Fprintf(out, "  max moon        %.2f°\n", r.MaxMoon)
	fmt.Fprintf(out, "  moon phase      %s, %.1f%% illuminated\n", r.Moon.Name, r.Moon.Percent())

	switch {
	case r.MoonError != nil:
		fmt.Fprintf(out, "  moonrise/set    unavailable (%v)\n", r.MoonError)
	case r.Moonrise.IsZero() && r.Moonset.IsZero():
		return
	default:
		fmt.Fprintf(out, "  moonrise        %s\n", formatEvent(r.Moonrise))
		fmt.Fprintf(out, "  moonset         %s\n", formatEvent(r.Moonset))
	}
}

func formatEvent(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.TimeOnly)
}
