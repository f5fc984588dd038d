package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solarwindow/pvpoll/cmd/astro"
	"github.com/solarwindow/pvpoll/cmd/ledger"
	"github.com/solarwindow/pvpoll/cmd/notify"
	"github.com/solarwindow/pvpoll/cmd/run"
	"github.com/solarwindow/pvpoll/cmd/window"
	"github.com/solarwindow/pvpoll/internal/app"
	"github.com/solarwindow/pvpoll/internal/buildinfo"
	"github.com/solarwindow/pvpoll/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "pvpoll",
		Short:         "Daylight aware PV metrics poller",
		Version:       buildinfo.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search the standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		run.Command(),
		window.Command(),
		astro.Command(),
		notify.Command(),
		ledger.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if _, err := app.SetupLogging(settings); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their settings keys
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.Float64("latitude", conf.DefaultLatitude, "Observer latitude in decimal degrees")
	flags.Float64("longitude", conf.DefaultLongitude, "Observer longitude in decimal degrees")
	flags.String("timezone", conf.DefaultTimezone, "IANA timezone defining calendar days")

	bindings := map[string]string{
		"debug":              "debug",
		"location.latitude":  "latitude",
		"location.longitude": "longitude",
		"location.timezone":  "timezone",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
