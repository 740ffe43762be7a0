package cli

import (
	"github.com/spf13/cobra"
)

var runNowCmd = &cobra.Command{
	Use:   "run-now",
	Short: "Execute a single detection pass immediately and print its stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunOnce(cmd.Context())
	},
}
