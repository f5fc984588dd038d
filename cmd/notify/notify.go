package notify

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/notification"
)

// Command returns a cobra command that sends a test notification to the
// configured shoutrrr URLs
func Command() *cobra.Command {
	var (
		title   string
		message string
		timeout time.Duration
		urls    []string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification",
		Long: `Send a test notification through the configured notification URLs.

Examples:
  # Use the URLs from config.yaml
  pvpoll notify --message="Hello"

  # Override the targets
  pvpoll notify --url="ntfy://ntfy.sh/pvpoll" --title="Test"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if len(urls) == 0 {
				urls = settings.Notification.URLs
			}
			if len(urls) == 0 {
				return fmt.Errorf("no notification URLs configured")
			}

			n, err := notification.New(notification.Config{
				URLs:        urls,
				Timeout:     timeout,
				TitlePrefix: "[pvpoll]",
			})
			if err != nil {
				return err
			}
			if err := n.Notify(cmd.Context(), title, message); err != nil {
				return fmt.Errorf("failed to send notification: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Notification sent to %d target(s)\n", len(urls))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "Test notification", "Notification title")
	cmd.Flags().StringVar(&message, "message", "pvpoll can reach this target", "Notification message")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Send timeout")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "shoutrrr URL, repeatable (default: notification.urls)")

	return cmd
}
