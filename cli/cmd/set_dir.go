package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSetDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-dir <path>",
		Short: "Change the folder the server shares",
		Long: `Change the folder the server shares. The path is resolved on the server
and created if it does not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient(cmd).SetDirectory(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now sharing %s\n", result.ShareDir)
			return nil
		},
	}
}
