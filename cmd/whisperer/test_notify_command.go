package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whisperer/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test message through every configured notification channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg, logger)
			if _, ok := svc.(notifications.Noop); ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent: no SMTP host or ntfy topic configured")
				return nil
			}
			if err := svc.Test(cmd.Context()); err != nil {
				return fmt.Errorf("test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
