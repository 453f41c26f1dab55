package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// The store creates its tables when it opens, so migrating is opening.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the session tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closeStore, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}

		defer closeStore()

		fmt.Fprintf(cmd.OutOrStdout(), "session schema ready on %s\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
