package cli

import (
	"github.com/spf13/cobra"

	"account-health-alerts/internal/app"
)

var (
	purgeRetentionDays int
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete alerts older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PurgeOptions{
			RetentionDays: purgeRetentionDays,
		}

		return getApp().Purge(cmd.Context(), opts)
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeRetentionDays, "retention-days", 180, "Keep alerts newer than this many days")
}
