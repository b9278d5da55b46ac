package main

import (
	"github.com/spf13/cobra"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/notify"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test notification to every configured target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		tf, err := config.LoadTrackerFileLoose(cfg.TrackerConfig)
		if err != nil {
			return err
		}
		urls := tf.NotificationURLs()
		if len(urls) == 0 {
			logger.WarnContext(ctx, "no notification targets configured")
			return nil
		}
		sender, err := notify.New(urls, logger)
		if err != nil {
			return err
		}
		if err := notify.Test(ctx, sender); err != nil {
			return err
		}
		logger.InfoContext(ctx, "test notification sent", "targets", len(urls))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}
