package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptorium/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured backends",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Notifications.NtfyTopic == "" && cfg.Notifications.NATSURL == "" {
				fmt.Fprintln(out, "No notification backend configured (set notifications.ntfy_topic or notifications.nats_url)")
				return nil
			}
			notifier, err := notifications.NewService(cfg)
			if err != nil {
				return err
			}
			defer notifier.Close()
			if err := notifier.Publish(cmd.Context(), notifications.EventTest, notifications.Payload{"source": "cli"}); err != nil {
				fmt.Fprintln(out, "Notification not sent")
				return err
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
