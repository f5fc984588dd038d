package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solarwindow/pvpoll/internal/app"
	"github.com/solarwindow/pvpoll/internal/conf"
)

// Command creates the run command which polls until interrupted.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll PV metrics within the daylight window",
		Long:  "Start the polling scheduler together with the enabled MQTT, HTTP API and persistence components.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()

			a, err := app.New(settings)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("budget", conf.DefaultDailyBudget, "Daily query budget")
	cmd.Flags().Bool("persist", false, "Persist the daily budget ledger across restarts")
	cmd.Flags().Bool("api", true, "Serve the HTTP status API")
	cmd.Flags().String("listen", "127.0.0.1:8089", "Listen address of the HTTP status API")
	cmd.Flags().Bool("mqtt", false, "Publish readings to MQTT")

	bindings := map[string]string{
		"budget.daily":   "budget",
		"budget.persist": "persist",
		"api.enabled":    "api",
		"api.listen":     "listen",
		"mqtt.enabled":   "mqtt",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
