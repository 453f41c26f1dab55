package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/sqlsession/pkg/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, closeStore, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}

		defer closeStore()

		removed, err := sweep.NewScheduler(store, cfg.Sweep.Interval).RunOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)

		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
