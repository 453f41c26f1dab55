package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/theapemachine/sqlsession/pkg/service"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a stored session without extending its lifetime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, closeStore, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}

		defer closeStore()

		record, found, err := store.Peek(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("session %s not found or expired", args[0])
		}

		out, err := json.MarshalIndent(service.NewSessionView(record), "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
